package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Train struct {
	bun.BaseModel `bun:"table:trains,alias:tr"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Number    string    `bun:"number,notnull,unique" json:"number"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
