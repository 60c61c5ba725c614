package db

import (
	"time"

	"gorm.io/gorm"
)

// TableRecord is the persisted registration of a table, used to bring
// tables back up after a restart.
type TableRecord struct {
	ID            string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Name          string         `gorm:"column:name;type:varchar(100)" json:"name"`
	Status        string         `gorm:"column:status;type:varchar(20);default:waiting" json:"status"`
	SmallBlind    int            `gorm:"column:small_blind;not null" json:"small_blind"`
	BigBlind      int            `gorm:"column:big_blind;not null" json:"big_blind"`
	MaxPlayers    int            `gorm:"column:max_players;not null" json:"max_players"`
	MinBuyIn      int            `gorm:"column:min_buy_in" json:"min_buy_in"`
	MaxBuyIn      int            `gorm:"column:max_buy_in" json:"max_buy_in"`
	ActionTimeout int            `gorm:"column:action_timeout;default:30" json:"action_timeout"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	CompletedAt   *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	DeletedAt     gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (TableRecord) TableName() string {
	return "tables"
}

// SeatRecord tracks which player holds which seat with how many chips.
// LeftAt is set when the seat clears; live seats have it null.
type SeatRecord struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TableID    string     `gorm:"column:table_id;type:varchar(36);not null;index:idx_table_user" json:"table_id"`
	UserID     string     `gorm:"column:user_id;type:varchar(36);not null;index:idx_table_user" json:"user_id"`
	SeatNumber int        `gorm:"column:seat_number;not null" json:"seat_number"`
	Chips      int        `gorm:"column:chips;not null" json:"chips"`
	JoinedAt   time.Time  `gorm:"column:joined_at;autoCreateTime" json:"joined_at"`
	LeftAt     *time.Time `gorm:"column:left_at" json:"left_at,omitempty"`
}

func (SeatRecord) TableName() string {
	return "table_seats"
}

// HandRecord is one completed (or in-flight) hand.
type HandRecord struct {
	ID             int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	HandID         string     `gorm:"column:hand_id;type:varchar(36);uniqueIndex;not null" json:"hand_id"`
	TableID        string     `gorm:"column:table_id;type:varchar(36);not null;index:idx_table_hand" json:"table_id"`
	HandNumber     int        `gorm:"column:hand_number;not null" json:"hand_number"`
	DealerPosition int        `gorm:"column:dealer_position" json:"dealer_position"`
	Pot            int        `gorm:"column:pot" json:"pot"`
	Rake           int        `gorm:"column:rake" json:"rake"`
	Showdown       bool       `gorm:"column:showdown" json:"showdown"`
	WinnersJSON    string     `gorm:"column:winners;type:text" json:"winners"`
	StartedAt      time.Time  `gorm:"column:started_at;autoCreateTime" json:"started_at"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (HandRecord) TableName() string {
	return "hands"
}

// HandEvent is one step of a hand's history, ordered by SequenceNumber
// within the hand.
type HandEvent struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	HandID         string    `gorm:"column:hand_id;type:varchar(36);not null;index:idx_hand_seq" json:"hand_id"`
	TableID        string    `gorm:"column:table_id;type:varchar(36);not null" json:"table_id"`
	EventType      string    `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	UserID         *string   `gorm:"column:user_id;type:varchar(36)" json:"user_id,omitempty"`
	Phase          *string   `gorm:"column:phase;type:varchar(15)" json:"phase,omitempty"`
	ActionType     *string   `gorm:"column:action_type;type:varchar(15)" json:"action_type,omitempty"`
	Amount         int       `gorm:"column:amount" json:"amount"`
	Metadata       string    `gorm:"column:metadata;type:text" json:"metadata"`
	SequenceNumber int       `gorm:"column:sequence_number;not null;index:idx_hand_seq" json:"sequence_number"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (HandEvent) TableName() string {
	return "hand_events"
}

// Migrate creates or updates the schema for every persisted model.
func (d *DB) Migrate() error {
	return d.AutoMigrate(&TableRecord{}, &SeatRecord{}, &HandRecord{}, &HandEvent{})
}
