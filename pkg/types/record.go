package types

import "time"

// Record is one daily journal entry. At most one Record exists per Date; the
// store enforces that with a unique constraint.
//
// Optional numeric and date fields are pointers (nil means "not answered").
// Empty lists are nil. Text fields are plain strings; "" is a real value.
type Record struct {
	ID   int64 // 0 until the store persists the record.
	Date Date  // Required; immutable once the record exists.

	Mood        string
	StressLevel *int // 1-10
	FocusLevel  *int // 1-10
	Emotions    []string
	Gratitude   string

	SleepQuality  *int // 1-10
	SleepHours    *float64
	Bedtime       *time.Time
	WakeTime      *time.Time
	WokeUpAtNight bool
	NightWakings  *int
	HadDream      bool

	Exercised        bool
	ExerciseTypes    []string
	ExerciseDuration *int // minutes
	Steps            *int

	WaterGlasses  *int
	CaffeineCups  *int
	AlcoholDrinks *int
	AteHealthy    bool
	WeightKg      *float64

	HadHeadache    bool
	PainAreas      []string
	PainLevel      *int // 1-10
	TookMedication bool
	Medications    []string
	Symptoms       []string

	ScreenTime         *int // minutes
	Meditated          bool
	MeditationDuration *int // minutes
	CompletedTasks     []string
	Productivity       *int // 1-10

	SocialActivities []string
	SocialAnxiety    *int // 1-10
	SpokeWithFriend  bool

	MorningMood      string
	MorningEnergy    *int // 1-10
	MorningCheckDone bool

	NextAppointment    *Date
	SelfRating         *int // 1-10
	PhotoPath          string
	RoutineCheckPassed bool

	// Attributes holds rotating-question answers keyed by opaque short codes.
	// It is the overlay view of the record and is stored outside the fixed
	// record table.
	Attributes map[string]string
	Notes      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord returns an empty record for date with field defaults applied.
func NewRecord(date Date) Record {
	return Record{
		Date:               date,
		RoutineCheckPassed: true,
	}
}

// AttributeRow is one (record, key) -> value entry of the attribute overlay.
// Values are always stored as text regardless of their logical type.
type AttributeRow struct {
	RecordID int64  `json:"record_id"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

// StreakState is the derived streak summary. Longest >= Current always holds.
type StreakState struct {
	Current  int   `json:"current"`
	Longest  int   `json:"longest"`
	LastDate *Date `json:"last_date,omitempty"`
}

// Ptr returns a pointer to v. Handy for filling optional record fields.
func Ptr[T any](v T) *T {
	return &v
}
