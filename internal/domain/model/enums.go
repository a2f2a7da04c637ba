package model

import (
	"fmt"
	"sort"
)

// DurationBucket is how long the two people have been in contact.
type DurationBucket string

const (
	DurationUnderOneWeek   DurationBucket = "under_1_week"
	DurationWeekToMonth    DurationBucket = "1_week_1_month"
	DurationOneToThreeMo   DurationBucket = "1_3_months"
	DurationOverThreeMonth DurationBucket = "3_months_plus"
)

// ReplyBucket is the counterpart's average reply interval.
type ReplyBucket string

const (
	ReplyWithin5Min   ReplyBucket = "within_5_min"
	ReplyWithin30Min  ReplyBucket = "within_30_min"
	ReplyWithin1Hour  ReplyBucket = "within_1_hour"
	ReplyWithin3Hour  ReplyBucket = "within_3_hours"
	ReplyWithin6Hour  ReplyBucket = "within_6_hours"
	ReplyWithin12Hour ReplyBucket = "within_12_hours"
	ReplyOverOneDay   ReplyBucket = "over_1_day"
)

// PartnerStatus is whether the counterpart is currently seeing someone.
type PartnerStatus string

const (
	PartnerSingle     PartnerStatus = "single"
	PartnerAmbiguous  PartnerStatus = "ambiguous"
	PartnerHasPartner PartnerStatus = "has_partner"
)

// RelationshipContext is how the two people met. Stored, never scored.
type RelationshipContext string

const (
	ContextBlindDate    RelationshipContext = "blind_date"
	ContextWorkOrSchool RelationshipContext = "work_or_school"
	ContextClubOrGroup  RelationshipContext = "club_or_group"
	ContextDatingApp    RelationshipContext = "dating_app"
	ContextOldFriend    RelationshipContext = "old_friend"
)

// PhysicalDistance between the two people.
type PhysicalDistance string

const (
	DistanceSameNeighborhood PhysicalDistance = "same_neighborhood"
	DistanceWithinOneHour    PhysicalDistance = "within_1_hour"
	DistanceLong             PhysicalDistance = "long_distance"
	DistanceOverseas         PhysicalDistance = "overseas"
)

// ContactFrequency is the reply-speed bucket used by the full questionnaire.
type ContactFrequency string

const (
	ContactInstant      ContactFrequency = "instant"
	ContactOneTwoHours  ContactFrequency = "1_2_hours"
	ContactHalfDay      ContactFrequency = "half_day"
	ContactOneTwoPerDay ContactFrequency = "1_2_per_day"
	ContactFewDays      ContactFrequency = "few_days"
)

// InitiativeRatio is who usually starts the conversation.
type InitiativeRatio string

const (
	InitiativeCounterpartMostly InitiativeRatio = "counterpart_mostly"
	InitiativeSimilar           InitiativeRatio = "similar"
	InitiativeSelfMostly        InitiativeRatio = "self_mostly"
)

// ActiveTime is when the conversation is most active.
type ActiveTime string

const (
	ActiveDaytime   ActiveTime = "daytime"
	ActiveEvening   ActiveTime = "evening"
	ActiveNightDawn ActiveTime = "night_dawn"
)

// MeetingInitiative is who usually proposes meeting in person.
type MeetingInitiative string

const (
	MeetingByCounterpart MeetingInitiative = "mostly_counterpart"
	MeetingBySimilar     MeetingInitiative = "similar"
	MeetingByMe          MeetingInitiative = "mostly_me"
)

// MeetingType describes how the two people usually meet.
type MeetingType string

const (
	MeetingAlwaysOneOnOne    MeetingType = "always_one_on_one"
	MeetingUsuallyGroup      MeetingType = "usually_group"
	MeetingGroupThenOneOnOne MeetingType = "group_then_one_on_one"
)

// DateCourse is one entry of the date-course checklist.
type DateCourse string

const (
	CourseLightMealCafe   DateCourse = "light_meal_cafe"
	CourseDinnerAndDrinks DateCourse = "dinner_and_drinks"
	CourseMovieExhibition DateCourse = "movie_exhibition"
	CourseWalkSports      DateCourse = "walk_sports"
)

// BehavioralSignal is one entry of the behavioral-signal checklist.
type BehavioralSignal string

const (
	SignalSharesDailyLife        BehavioralSignal = "shares_daily_life"
	SignalSuggestsFuturePlans    BehavioralSignal = "suggests_future_plans"
	SignalRemembersDetails       BehavioralSignal = "remembers_details"
	SignalAsksBack               BehavioralSignal = "asks_back"
	SignalCuriousAboutCompany    BehavioralSignal = "curious_about_company"
	SignalApologizesForLateReply BehavioralSignal = "apologizes_for_late_reply"
)

var (
	durationBuckets = []DurationBucket{
		DurationUnderOneWeek, DurationWeekToMonth, DurationOneToThreeMo, DurationOverThreeMonth,
	}
	replyBuckets = []ReplyBucket{
		ReplyWithin5Min, ReplyWithin30Min, ReplyWithin1Hour, ReplyWithin3Hour,
		ReplyWithin6Hour, ReplyWithin12Hour, ReplyOverOneDay,
	}
	partnerStatuses      = []PartnerStatus{PartnerSingle, PartnerAmbiguous, PartnerHasPartner}
	relationshipContexts = []RelationshipContext{
		ContextBlindDate, ContextWorkOrSchool, ContextClubOrGroup, ContextDatingApp, ContextOldFriend,
	}
	physicalDistances = []PhysicalDistance{
		DistanceSameNeighborhood, DistanceWithinOneHour, DistanceLong, DistanceOverseas,
	}
	contactFrequencies = []ContactFrequency{
		ContactInstant, ContactOneTwoHours, ContactHalfDay, ContactOneTwoPerDay, ContactFewDays,
	}
	initiativeRatios   = []InitiativeRatio{InitiativeCounterpartMostly, InitiativeSimilar, InitiativeSelfMostly}
	activeTimes        = []ActiveTime{ActiveDaytime, ActiveEvening, ActiveNightDawn}
	meetingInitiatives = []MeetingInitiative{MeetingByCounterpart, MeetingBySimilar, MeetingByMe}
	meetingTypes       = []MeetingType{MeetingAlwaysOneOnOne, MeetingUsuallyGroup, MeetingGroupThenOneOnOne}
	dateCourses        = []DateCourse{CourseLightMealCafe, CourseDinnerAndDrinks, CourseMovieExhibition, CourseWalkSports}
	behavioralSignals  = []BehavioralSignal{
		SignalSharesDailyLife, SignalSuggestsFuturePlans, SignalRemembersDetails,
		SignalAsksBack, SignalCuriousAboutCompany, SignalApologizesForLateReply,
	}
)

// parseEnum matches raw against the closed set and wraps ErrInvalidInput otherwise.
func parseEnum[T ~string](field, raw string, set []T) (T, error) {
	for _, v := range set {
		if string(v) == raw {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s %q", ErrInvalidInput, field, raw)
}

func isMember[T ~string](v T, set []T) bool {
	for _, m := range set {
		if m == v {
			return true
		}
	}
	return false
}

// ParseDurationBucket converts a wire value into a DurationBucket.
func ParseDurationBucket(s string) (DurationBucket, error) {
	return parseEnum("duration", s, durationBuckets)
}

// ParseReplyBucket converts a wire value into a ReplyBucket.
func ParseReplyBucket(s string) (ReplyBucket, error) {
	return parseEnum("reply_interval", s, replyBuckets)
}

// ParsePartnerStatus converts a wire value into a PartnerStatus.
func ParsePartnerStatus(s string) (PartnerStatus, error) {
	return parseEnum("partner_status", s, partnerStatuses)
}

// ParseRelationshipContext converts a wire value into a RelationshipContext.
func ParseRelationshipContext(s string) (RelationshipContext, error) {
	return parseEnum("relationship_context", s, relationshipContexts)
}

// ParsePhysicalDistance converts a wire value into a PhysicalDistance.
func ParsePhysicalDistance(s string) (PhysicalDistance, error) {
	return parseEnum("physical_distance", s, physicalDistances)
}

// ParseContactFrequency converts a wire value into a ContactFrequency.
func ParseContactFrequency(s string) (ContactFrequency, error) {
	return parseEnum("contact_frequency", s, contactFrequencies)
}

// ParseInitiativeRatio converts a wire value into an InitiativeRatio.
func ParseInitiativeRatio(s string) (InitiativeRatio, error) {
	return parseEnum("initiative_ratio", s, initiativeRatios)
}

// ParseActiveTime converts a wire value into an ActiveTime.
func ParseActiveTime(s string) (ActiveTime, error) {
	return parseEnum("active_time", s, activeTimes)
}

// ParseMeetingInitiative converts a wire value into a MeetingInitiative.
func ParseMeetingInitiative(s string) (MeetingInitiative, error) {
	return parseEnum("meeting_initiative", s, meetingInitiatives)
}

// ParseMeetingType converts a wire value into a MeetingType.
func ParseMeetingType(s string) (MeetingType, error) {
	return parseEnum("meeting_type", s, meetingTypes)
}

// DurationBuckets returns every duration bucket in display order.
func DurationBuckets() []DurationBucket { return append([]DurationBucket(nil), durationBuckets...) }

// ReplyBuckets returns every reply bucket from fastest to slowest.
func ReplyBuckets() []ReplyBucket { return append([]ReplyBucket(nil), replyBuckets...) }

// BehavioralSignalCatalog returns the full behavioral-signal checklist.
func BehavioralSignalCatalog() []BehavioralSignal {
	return append([]BehavioralSignal(nil), behavioralSignals...)
}

// DateCourseCatalog returns the full date-course checklist.
func DateCourseCatalog() []DateCourse { return append([]DateCourse(nil), dateCourses...) }

// NewDateCourses builds a sorted, duplicate-free set from raw option strings.
func NewDateCourses(raw []string) ([]DateCourse, error) {
	return buildSet("date_courses", raw, dateCourses)
}

// NewBehavioralSignals builds a sorted, duplicate-free set from raw option strings.
func NewBehavioralSignals(raw []string) ([]BehavioralSignal, error) {
	return buildSet("behavioral_signals", raw, behavioralSignals)
}

func buildSet[T ~string](field string, raw []string, catalog []T) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		v, err := parseEnum(field, r, catalog)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return dedupeSorted(out), nil
}

func dedupeSorted[T ~string](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
