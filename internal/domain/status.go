package domain

// StatusBucket represents one dashboard status column, mapping the
// dashboard name to the GLPI status ids it covers
type StatusBucket struct {
	Name string
	IDs  []int
}

// GLPI ticket status ids (stable across installations, unlike field ids)
const (
	GLPIStatusNew        = 1
	GLPIStatusProcessing = 2
	GLPIStatusPlanned    = 3
	GLPIStatusPending    = 4
	GLPIStatusSolved     = 5
	GLPIStatusClosed     = 6
)

// Dashboard status bucket names, also used as JSON keys in the
// tendencias map
const (
	BucketNew        = "novos"
	BucketPending    = "pendentes"
	BucketInProgress = "progresso"
	BucketResolved   = "resolvidos"
)

// StatusBuckets lists the tracked dashboard buckets in display order
var StatusBuckets = []StatusBucket{
	{Name: BucketNew, IDs: []int{GLPIStatusNew}},
	{Name: BucketPending, IDs: []int{GLPIStatusPending}},
	{Name: BucketInProgress, IDs: []int{GLPIStatusProcessing, GLPIStatusPlanned}},
	{Name: BucketResolved, IDs: []int{GLPIStatusSolved, GLPIStatusClosed}},
}
