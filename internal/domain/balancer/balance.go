package balancer

// Bucket is a qualitative balance rating.
type Bucket string

// Balance buckets, best first.
const (
	BucketPerfect    Bucket = "perfect"
	BucketExcellent  Bucket = "excellent"
	BucketGood       Bucket = "good"
	BucketFair       Bucket = "fair"
	BucketUnbalanced Bucket = "unbalanced"
)

// Balance describes how close two teams' average OVRs are.
type Balance struct {
	Bucket Bucket  `json:"bucket"`
	Score  int     `json:"score"`
	Diff   float64 `json:"diff"`
}

// Classify maps an average OVR gap to its bucket.
func Classify(diff float64) Balance {
	b := Balance{Diff: diff}
	switch {
	case diff <= 1:
		b.Bucket, b.Score = BucketPerfect, 100
	case diff <= 3:
		b.Bucket, b.Score = BucketExcellent, 90
	case diff <= 5:
		b.Bucket, b.Score = BucketGood, 75
	case diff <= 8:
		b.Bucket, b.Score = BucketFair, 60
	default:
		b.Bucket, b.Score = BucketUnbalanced, 40
	}
	return b
}
