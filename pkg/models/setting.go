package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Setting is one entry of the string-keyed settings namespace, kept apart
// from the books table.
type Setting struct {
	bun.BaseModel `bun:"table:settings,alias:st"`

	Key       string    `bun:",pk" json:"key"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
	Value     string    `bun:",notnull" json:"value"`
}
