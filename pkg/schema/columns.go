package schema

import (
	"fmt"
	"math"
	"time"

	"github.com/mesh-intelligence/daybook/pkg/types"
)

// Names of columns other packages refer to directly.
const (
	ColID         = "id"
	ColDate       = "date"
	ColAttributes = "rotatingAnswers"
	ColNotes      = "notes"
	ColCreatedAt  = "createdAt"
	ColUpdatedAt  = "updatedAt"
)

// Column describes one field of a record: its wire name, value kind,
// bounds, default, and how to read and write it on a types.Record.
type Column struct {
	Name     string
	Kind     Kind
	Required bool

	bounded  bool
	min, max float64
	def      Value
	get      func(*types.Record) Value
	set      func(*types.Record, Value)
}

// Get reads the column's value from r.
func (c Column) Get(r *types.Record) Value {
	return c.get(r)
}

// Set validates v and writes it to r.
func (c Column) Set(r *types.Record, v Value) error {
	if err := c.Validate(v); err != nil {
		return &FieldError{Column: c.Name, Value: Encode(v, nil), Err: err}
	}
	c.set(r, v)
	return nil
}

// Default is the value a column takes when an import file lacks it.
func (c Column) Default() Value {
	return c.def
}

// Bounds returns the inclusive numeric range of the column, if any.
func (c Column) Bounds() (lo, hi float64, ok bool) {
	return c.min, c.max, c.bounded
}

// Validate checks kind, presence, and bounds of v.
func (c Column) Validate(v Value) error {
	if v == nil || v.Kind() != c.Kind {
		return ErrKindMismatch
	}
	switch v := v.(type) {
	case OptInt:
		if !v.Valid {
			return c.checkRequired()
		}
		return c.checkRange(float64(v.Int))
	case OptFloat:
		if !v.Valid {
			return c.checkRequired()
		}
		return c.checkRange(v.Float)
	case OptDate:
		if !v.Valid {
			return c.checkRequired()
		}
	case OptDateTime:
		if !v.Valid {
			return c.checkRequired()
		}
	}
	return nil
}

func (c Column) checkRequired() error {
	if c.Required {
		return ErrMissingValue
	}
	return nil
}

func (c Column) checkRange(f float64) error {
	if c.bounded && (f < c.min || f > c.max) {
		return fmt.Errorf("%w: want %g..%g", ErrOutOfRange, c.min, c.max)
	}
	return nil
}

// EncodeCell renders the column's value of r as cell text.
func (c Column) EncodeCell(r *types.Record, loc *time.Location) string {
	return Encode(c.get(r), loc)
}

// DecodeCell parses cell text and validates it for this column. Failures are
// returned as *FieldError.
func (c Column) DecodeCell(cell string, loc *time.Location) (Value, error) {
	v, err := Decode(c.Kind, cell, loc)
	if err != nil {
		return nil, &FieldError{Column: c.Name, Value: cell, Err: err}
	}
	if err := c.Validate(v); err != nil {
		return nil, &FieldError{Column: c.Name, Value: cell, Err: err}
	}
	return v, nil
}

// Columns lists every record column in wire order. The order is the header
// order of an export file; decoding does not depend on it.
var Columns = []Column{
	idColumn(),
	dateColumn(),

	textColumn("mood", func(r *types.Record) *string { return &r.Mood }),
	intColumn("stressLevel", 1, 10, func(r *types.Record) **int { return &r.StressLevel }),
	intColumn("focusLevel", 1, 10, func(r *types.Record) **int { return &r.FocusLevel }),
	listColumn("emotions", func(r *types.Record) *[]string { return &r.Emotions }),
	textColumn("gratitude", func(r *types.Record) *string { return &r.Gratitude }),

	intColumn("sleepQuality", 1, 10, func(r *types.Record) **int { return &r.SleepQuality }),
	floatColumn("sleepHours", 0, 24, func(r *types.Record) **float64 { return &r.SleepHours }),
	dateTimeColumn("bedtime", func(r *types.Record) **time.Time { return &r.Bedtime }),
	dateTimeColumn("wakeTime", func(r *types.Record) **time.Time { return &r.WakeTime }),
	boolColumn("wokeUpAtNight", false, func(r *types.Record) *bool { return &r.WokeUpAtNight }),
	intColumn("nightWakings", 0, 50, func(r *types.Record) **int { return &r.NightWakings }),
	boolColumn("hadDream", false, func(r *types.Record) *bool { return &r.HadDream }),

	boolColumn("exercised", false, func(r *types.Record) *bool { return &r.Exercised }),
	listColumn("exerciseTypes", func(r *types.Record) *[]string { return &r.ExerciseTypes }),
	intColumn("exerciseDuration", 0, 1440, func(r *types.Record) **int { return &r.ExerciseDuration }),
	intColumn("steps", 0, 200000, func(r *types.Record) **int { return &r.Steps }),

	intColumn("waterGlasses", 0, 50, func(r *types.Record) **int { return &r.WaterGlasses }),
	intColumn("caffeineCups", 0, 50, func(r *types.Record) **int { return &r.CaffeineCups }),
	intColumn("alcoholDrinks", 0, 50, func(r *types.Record) **int { return &r.AlcoholDrinks }),
	boolColumn("ateHealthy", false, func(r *types.Record) *bool { return &r.AteHealthy }),
	floatColumn("weightKg", 0, 500, func(r *types.Record) **float64 { return &r.WeightKg }),

	boolColumn("hadHeadache", false, func(r *types.Record) *bool { return &r.HadHeadache }),
	listColumn("painAreas", func(r *types.Record) *[]string { return &r.PainAreas }),
	intColumn("painLevel", 1, 10, func(r *types.Record) **int { return &r.PainLevel }),
	boolColumn("tookMedication", false, func(r *types.Record) *bool { return &r.TookMedication }),
	listColumn("medications", func(r *types.Record) *[]string { return &r.Medications }),
	listColumn("symptoms", func(r *types.Record) *[]string { return &r.Symptoms }),

	intColumn("screenTime", 0, 1440, func(r *types.Record) **int { return &r.ScreenTime }),
	boolColumn("meditated", false, func(r *types.Record) *bool { return &r.Meditated }),
	intColumn("meditationDuration", 0, 1440, func(r *types.Record) **int { return &r.MeditationDuration }),
	listColumn("completedTasks", func(r *types.Record) *[]string { return &r.CompletedTasks }),
	intColumn("productivity", 1, 10, func(r *types.Record) **int { return &r.Productivity }),

	listColumn("socialActivities", func(r *types.Record) *[]string { return &r.SocialActivities }),
	intColumn("socialAnxiety", 1, 10, func(r *types.Record) **int { return &r.SocialAnxiety }),
	boolColumn("spokeWithFriend", false, func(r *types.Record) *bool { return &r.SpokeWithFriend }),

	textColumn("morningMood", func(r *types.Record) *string { return &r.MorningMood }),
	intColumn("morningEnergy", 1, 10, func(r *types.Record) **int { return &r.MorningEnergy }),
	boolColumn("morningCheckDone", false, func(r *types.Record) *bool { return &r.MorningCheckDone }),

	optDateColumn("nextAppointment", func(r *types.Record) **types.Date { return &r.NextAppointment }),
	intColumn("selfRating", 1, 10, func(r *types.Record) **int { return &r.SelfRating }),
	textColumn("photoPath", func(r *types.Record) *string { return &r.PhotoPath }),
	boolColumn("routineCheckPassed", true, func(r *types.Record) *bool { return &r.RoutineCheckPassed }),

	attributesColumn(),
	textColumn(ColNotes, func(r *types.Record) *string { return &r.Notes }),

	timestampColumn(ColCreatedAt, func(r *types.Record) *time.Time { return &r.CreatedAt }),
	timestampColumn(ColUpdatedAt, func(r *types.Record) *time.Time { return &r.UpdatedAt }),
}

var columnIndex = func() map[string]int {
	m := make(map[string]int, len(Columns))
	for i, c := range Columns {
		m[c.Name] = i
	}
	return m
}()

// Lookup returns the column with the given wire name.
func Lookup(name string) (Column, bool) {
	i, ok := columnIndex[name]
	if !ok {
		return Column{}, false
	}
	return Columns[i], true
}

// Names returns the column names in wire order.
func Names() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

func idColumn() Column {
	return Column{
		Name:    ColID,
		Kind:    KindInt,
		bounded: true,
		min:     0,
		max:     math.MaxInt64,
		def:     OptInt{},
		get: func(r *types.Record) Value {
			if r.ID == 0 {
				return OptInt{}
			}
			return OptInt{Int: r.ID, Valid: true}
		},
		set: func(r *types.Record, v Value) {
			r.ID = v.(OptInt).Int
		},
	}
}

func dateColumn() Column {
	return Column{
		Name:     ColDate,
		Kind:     KindDate,
		Required: true,
		def:      OptDate{},
		get: func(r *types.Record) Value {
			if r.Date.IsZero() {
				return OptDate{}
			}
			return OptDate{Date: r.Date, Valid: true}
		},
		set: func(r *types.Record, v Value) {
			r.Date = v.(OptDate).Date
		},
	}
}

func attributesColumn() Column {
	return Column{
		Name: ColAttributes,
		Kind: KindMap,
		def:  AttributeMap(nil),
		get: func(r *types.Record) Value {
			return AttributeMap(r.Attributes)
		},
		set: func(r *types.Record, v Value) {
			m := v.(AttributeMap)
			if len(m) == 0 {
				r.Attributes = nil
				return
			}
			r.Attributes = map[string]string(m)
		},
	}
}

func boolColumn(name string, def bool, field func(*types.Record) *bool) Column {
	return Column{
		Name: name,
		Kind: KindBool,
		def:  Bool(def),
		get: func(r *types.Record) Value {
			return Bool(*field(r))
		},
		set: func(r *types.Record, v Value) {
			*field(r) = bool(v.(Bool))
		},
	}
}

func intColumn(name string, lo, hi int64, field func(*types.Record) **int) Column {
	return Column{
		Name:    name,
		Kind:    KindInt,
		bounded: true,
		min:     float64(lo),
		max:     float64(hi),
		def:     OptInt{},
		get: func(r *types.Record) Value {
			p := *field(r)
			if p == nil {
				return OptInt{}
			}
			return OptInt{Int: int64(*p), Valid: true}
		},
		set: func(r *types.Record, v Value) {
			o := v.(OptInt)
			if !o.Valid {
				*field(r) = nil
				return
			}
			n := int(o.Int)
			*field(r) = &n
		},
	}
}

func floatColumn(name string, lo, hi float64, field func(*types.Record) **float64) Column {
	return Column{
		Name:    name,
		Kind:    KindFloat,
		bounded: true,
		min:     lo,
		max:     hi,
		def:     OptFloat{},
		get: func(r *types.Record) Value {
			p := *field(r)
			if p == nil {
				return OptFloat{}
			}
			return OptFloat{Float: *p, Valid: true}
		},
		set: func(r *types.Record, v Value) {
			o := v.(OptFloat)
			if !o.Valid {
				*field(r) = nil
				return
			}
			f := o.Float
			*field(r) = &f
		},
	}
}

func listColumn(name string, field func(*types.Record) *[]string) Column {
	return Column{
		Name: name,
		Kind: KindList,
		def:  StringList(nil),
		get: func(r *types.Record) Value {
			return StringList(*field(r))
		},
		set: func(r *types.Record, v Value) {
			l := v.(StringList)
			if len(l) == 0 {
				*field(r) = nil
				return
			}
			*field(r) = []string(l)
		},
	}
}

func textColumn(name string, field func(*types.Record) *string) Column {
	return Column{
		Name: name,
		Kind: KindText,
		def:  Text(""),
		get: func(r *types.Record) Value {
			return Text(*field(r))
		},
		set: func(r *types.Record, v Value) {
			*field(r) = string(v.(Text))
		},
	}
}

func optDateColumn(name string, field func(*types.Record) **types.Date) Column {
	return Column{
		Name: name,
		Kind: KindDate,
		def:  OptDate{},
		get: func(r *types.Record) Value {
			p := *field(r)
			if p == nil {
				return OptDate{}
			}
			return OptDate{Date: *p, Valid: true}
		},
		set: func(r *types.Record, v Value) {
			o := v.(OptDate)
			if !o.Valid {
				*field(r) = nil
				return
			}
			d := o.Date
			*field(r) = &d
		},
	}
}

func dateTimeColumn(name string, field func(*types.Record) **time.Time) Column {
	return Column{
		Name: name,
		Kind: KindDateTime,
		def:  OptDateTime{},
		get: func(r *types.Record) Value {
			p := *field(r)
			if p == nil {
				return OptDateTime{}
			}
			return OptDateTime{Time: *p, Valid: true}
		},
		set: func(r *types.Record, v Value) {
			o := v.(OptDateTime)
			if !o.Valid {
				*field(r) = nil
				return
			}
			t := o.Time
			*field(r) = &t
		},
	}
}

// timestampColumn maps a non-optional time.Time; the zero time is "unset"
// and the writer fills it in.
func timestampColumn(name string, field func(*types.Record) *time.Time) Column {
	return Column{
		Name: name,
		Kind: KindDateTime,
		def:  OptDateTime{},
		get: func(r *types.Record) Value {
			t := *field(r)
			if t.IsZero() {
				return OptDateTime{}
			}
			return OptDateTime{Time: t, Valid: true}
		},
		set: func(r *types.Record, v Value) {
			*field(r) = v.(OptDateTime).Time
		},
	}
}
