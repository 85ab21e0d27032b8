package domain

import (
	"time"
)

// Hit types reported by the combat log source. Only dodge, parry and
// miss count toward an avoidance streak; any other outcome breaks it.
const (
	HitTypeMiss  = 0
	HitTypeDodge = 7
	HitTypeParry = 8
)

// IsAvoidance reports whether a hit type is dodge, parry or miss.
func IsAvoidance(hitType int) bool {
	return hitType == HitTypeMiss || hitType == HitTypeDodge || hitType == HitTypeParry
}

// Report is one upload on the external log source. Reports are never
// persisted directly; only fights and streaks derived from them are.
// All timestamps are unix milliseconds.
type Report struct {
	Code      string
	Title     string
	Region    string
	StartTime int64
	EndTime   int64
}

// ReportFight is one encounter attempt inside a report, enriched with
// absolute timestamps and the tank roster fingerprint used for
// deduplication. Relative times are offsets from the report start.
type ReportFight struct {
	ReportCode      string
	Region          string
	FightID         int
	RelativeStart   int64
	RelativeEnd     int64
	StartTime       int64
	EndTime         int64
	EncounterID     int
	Difficulty      int
	FriendlyPlayers string
	Tanks           []PlayerDetail
}

// Fight is a persisted encounter attempt. The same attempt uploaded in
// two different reports reconciles to a single row via the unique
// (start_time, end_time, encounter_id, friendly_players, region) tuple.
type Fight struct {
	ID              int64
	FirstSeenReport string
	StartTime       int64
	EndTime         int64
	Difficulty      int
	EncounterID     int
	FriendlyPlayers string
	Region          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IngestedFight pairs a report fight with its persisted row.
type IngestedFight struct {
	ReportFight
	Persisted Fight
}

// PlayerSpec is one spec a player was observed playing in a report.
type PlayerSpec struct {
	Spec  string
	Count int
}

// PlayerDetail is a roster entry as reported by the log source. The ID
// is report-local; the GUID is globally stable across reports.
type PlayerDetail struct {
	ID     int
	GUID   int64
	Name   string
	Server string
	Type   string
	Specs  []PlayerSpec
}

// Character is the persisted identity for a player, keyed by guid.
// Created lazily the first time a streak is ingested for the player.
type Character struct {
	ID        int64
	Name      string
	Server    string
	Region    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DamageTakenEvent is one incoming-damage occurrence with a
// fight-relative timestamp. Events are ephemeral; they exist only in
// memory during an ingestion run.
type DamageTakenEvent struct {
	Timestamp     int64
	SourceID      int
	TargetID      int
	AbilityGameID int64
	HitType       int
	Amount        int64
	Absorbed      int64
	Mitigated     int64
}

// ReportDamageTakenEvent is a damage-taken event stamped with its
// owning report, fight and absolute timestamp.
type ReportDamageTakenEvent struct {
	DamageTakenEvent
	ReportCode        string
	Region            string
	ReportFightID     int
	AbsoluteTimestamp int64
}

// AvoidanceStreak is a maximal run of consecutive dodge/parry/miss
// events for one target, bounded by a breaking event or the fight
// boundary. Start and End are fight-relative.
type AvoidanceStreak struct {
	Dodge int
	Parry int
	Miss  int
	Start int64
	End   int64
}

// Empty reports whether the streak accumulated no avoidance at all.
// Empty streaks are discarded, never persisted.
func (s AvoidanceStreak) Empty() bool {
	return s.Dodge == 0 && s.Parry == 0 && s.Miss == 0
}

// ReportStreak is a detected streak enriched with its owning report,
// fight and target, plus absolute timestamps.
type ReportStreak struct {
	AvoidanceStreak
	ReportCode     string
	Region         string
	ReportFightID  int
	TimestampStart int64
	TimestampEnd   int64
	Target         PlayerDetail
}

// Streak is a persisted dodge/parry/miss streak row.
type Streak struct {
	ID            int64
	Report        string
	ReportFightID int
	RelativeStart int64
	RelativeEnd   int64
	Dodge         int
	Parry         int
	Miss          int
	StartTime     int64
	EndTime       int64
	SourceID      int64
	FightID       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
