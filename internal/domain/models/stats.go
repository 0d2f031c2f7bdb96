package models

// FolderStats is an approximate-under-budget aggregate over a folder subtree.
// When an exactness flag is false the matching number is a floor of the true
// value, not the true value; callers must render it accordingly.
type FolderStats struct {
	FileCount        int   `json:"file_count"`
	IsFileCountExact bool  `json:"is_file_count_exact"`
	TotalSize        int64 `json:"total_size"`
	IsTotalSizeExact bool  `json:"is_total_size_exact"`
}
