package scoring

import "github.com/okian/sumcheck/internal/domain/model"

var durationWeeks = map[model.DurationBucket]float64{
	model.DurationUnderOneWeek:   1,
	model.DurationWeekToMonth:    4,
	model.DurationOneToThreeMo:   12,
	model.DurationOverThreeMonth: 16,
}

var replyHours = map[model.ReplyBucket]float64{
	model.ReplyWithin5Min:   5.0 / 60.0,
	model.ReplyWithin30Min:  0.5,
	model.ReplyWithin1Hour:  1,
	model.ReplyWithin3Hour:  3,
	model.ReplyWithin6Hour:  6,
	model.ReplyWithin12Hour: 12,
	model.ReplyOverOneDay:   24,
}

// DurationBucketToWeeks converts a duration bucket to weeks. Unknown buckets yield 0.
func DurationBucketToWeeks(b model.DurationBucket) float64 {
	return durationWeeks[b]
}

// ReplyBucketToHours converts a reply bucket to hours. Unknown buckets yield 0.
func ReplyBucketToHours(b model.ReplyBucket) float64 {
	return replyHours[b]
}
