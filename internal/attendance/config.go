package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"MESS-backend/internal/platform/db"
)

const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"

	DateLayout = "2006-01-02"
)

// デフォルト値（デプロイ設定が無い場合の互換用。変更しないこと）
const (
	DefaultTimezone = "Asia/Kolkata"
	DefaultRadiusM  = 200.0
	DefaultLat      = 28.7041
	DefaultLng      = 77.1025
)

var defaultWindows = map[string]Window{
	MealBreakfast: {Start: "07:00", End: "10:00"},
	MealLunch:     {Start: "12:00", End: "15:00"},
	MealDinner:    {Start: "19:00", End: "22:00"},
}

// Window は "HH:MM" 形式の時刻帯。両端を含む
type Window struct {
	Start string
	End   string
}

// Config は1回の検証に使う設定スナップショット。
// Normalize 後は読み取り専用で、検証ごとに値コピーで渡す
type Config struct {
	Timezone     string
	MessLocation Coordinate
	MaxRadiusM   float64
	Windows      map[string]Window
	StrictQR     bool
	ExpectedQR   string

	loc     *time.Location
	minutes map[string]minuteWindow
}

// 分単位に変換済みの時間帯（比較用）
type minuteWindow struct {
	start int
	end   int
}

// ConfigFromYAML: yaml設定から Config を組み立てる。未指定はデフォルト補完
func ConfigFromYAML(m db.MessConfig) Config {
	cfg := Config{
		Timezone:     m.Timezone,
		MessLocation: Coordinate{Lat: m.Latitude, Lng: m.Longitude},
		MaxRadiusM:   m.RadiusM,
		StrictQR:     m.StrictQR,
		ExpectedQR:   m.ExpectedQR,
		Windows:      map[string]Window{},
	}
	for meal, y := range map[string]*db.MealWindowYAML{
		MealBreakfast: m.Breakfast,
		MealLunch:     m.Lunch,
		MealDinner:    m.Dinner,
	} {
		if y != nil && y.Start != "" && y.End != "" {
			cfg.Windows[meal] = Window{Start: y.Start, End: y.End}
		}
	}
	return cfg
}

// DefaultConfig: テスト・未設定デプロイ用
func DefaultConfig() Config {
	cfg := Config{}
	if err := cfg.Normalize(); err != nil {
		panic(err) // デフォルト値が壊れている場合のみ
	}
	return cfg
}

// Normalize: デフォルト補完・タイムゾーン解決・時間帯のパースと検証。
// 日付またぎの時間帯（end <= start）は設定ミスとして起動時に弾く
func (c *Config) Normalize() error {
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.loc = loc

	if c.MessLocation.Lat == 0 && c.MessLocation.Lng == 0 {
		c.MessLocation = Coordinate{Lat: DefaultLat, Lng: DefaultLng}
	}
	if c.MaxRadiusM <= 0 {
		c.MaxRadiusM = DefaultRadiusM
	}

	if c.Windows == nil {
		c.Windows = map[string]Window{}
	}
	for meal, w := range defaultWindows {
		if _, ok := c.Windows[meal]; !ok {
			c.Windows[meal] = w
		}
	}

	c.minutes = make(map[string]minuteWindow, len(c.Windows))
	for meal, w := range c.Windows {
		if meal != MealBreakfast && meal != MealLunch && meal != MealDinner {
			return fmt.Errorf("unknown meal type in config: %q", meal)
		}
		start, err := parseHM(w.Start)
		if err != nil {
			return fmt.Errorf("%s window start: %w", meal, err)
		}
		end, err := parseHM(w.End)
		if err != nil {
			return fmt.Errorf("%s window end: %w", meal, err)
		}
		if end <= start {
			return fmt.Errorf("%s window %s-%s crosses midnight or is empty", meal, w.Start, w.End)
		}
		c.minutes[meal] = minuteWindow{start: start, end: end}
	}
	return nil
}

// Location: 参照タイムゾーン。Normalize 前は呼ばないこと
func (c Config) Location() *time.Location {
	return c.loc
}

// ScanDateOf: スキャン時刻を参照タイムゾーンの暦日に正規化する。
// UTCの日付ではなく食堂ローカルの日付を使う（深夜のUTC日またぎ対策）
func (c Config) ScanDateOf(instant time.Time) string {
	return instant.In(c.loc).Format(DateLayout)
}

// IsWithinWindow: 指定時刻が食事種別の時間帯に入っているか。
// 両端を含む。未知の食事種別は検証エラー扱い（入力起因なので fault にしない）
func (c Config) IsWithinWindow(mealType string, instant time.Time) (bool, string) {
	mw, ok := c.minutes[mealType]
	if !ok {
		return false, ReasonUnknownMeal
	}
	local := instant.In(c.loc)
	m := local.Hour()*60 + local.Minute()
	if m < mw.start || m > mw.end {
		w := c.Windows[mealType]
		return false, fmt.Sprintf("outside %s window (%s-%s)", mealType, w.Start, w.End)
	}
	return true, ""
}

func parseHM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
