package config

import "time"

type CartConfig interface {
	GetCartSyncDebounce() time.Duration
}

type ProfileConfig interface {
	GetProfileCacheDuration() time.Duration
}

type Cart struct{}

var _ CartConfig = Cart{}

func (Cart) GetCartSyncDebounce() time.Duration {
	return GetDurationEnv("CART_SYNC_DEBOUNCE", time.Second)
}

type Profile struct{}

var _ ProfileConfig = Profile{}

func (Profile) GetProfileCacheDuration() time.Duration {
	return GetDurationEnv("PROFILE_CACHE_DURATION", 5*time.Minute)
}
