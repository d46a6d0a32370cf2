package types

// VariantPick is the name→value map of variant options chosen for a line
// item, stored as a jsonb snapshot on the order item.
type VariantPick map[string]string
