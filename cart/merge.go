package cart

// Merge reconciles a local cart with the server cart at login. Every server
// line is kept with the server's quantity, in server order; local lines whose
// product is not on the server are appended in local order.
func Merge(local, server []Item) []Item {
	merged := make([]Item, 0, len(local)+len(server))
	onServer := make(map[int64]struct{}, len(server))
	for _, item := range server {
		if _, dup := onServer[item.Product.ID]; dup {
			continue
		}
		onServer[item.Product.ID] = struct{}{}
		merged = append(merged, item)
	}
	for _, item := range local {
		if _, ok := onServer[item.Product.ID]; ok {
			continue
		}
		merged = append(merged, item)
	}
	return merged
}
