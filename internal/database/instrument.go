package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// QueryRecorder receives per-statement latency.
type QueryRecorder interface {
	RecordDBQuery(database, operation string, duration time.Duration)
}

const startedAtKey = "prompt2cad:started_at"

// Instrument registers GORM callbacks that time every create, query,
// update, delete and row statement and report them to rec.
func Instrument(db *gorm.DB, name string, rec QueryRecorder) error {
	if db == nil || rec == nil {
		return fmt.Errorf("db and recorder are required")
	}

	before := func(tx *gorm.DB) {
		tx.InstanceSet(startedAtKey, time.Now())
	}
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(startedAtKey)
			if !ok {
				return
			}
			if started, ok := v.(time.Time); ok {
				rec.RecordDBQuery(name, op, time.Since(started))
			}
		}
	}

	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(string) error
		after  func(string) error
	}{
		{"create", wrap(cb.Create().Before("gorm:create"), before), wrap(cb.Create().After("gorm:create"), after("create"))},
		{"query", wrap(cb.Query().Before("gorm:query"), before), wrap(cb.Query().After("gorm:query"), after("query"))},
		{"update", wrap(cb.Update().Before("gorm:update"), before), wrap(cb.Update().After("gorm:update"), after("update"))},
		{"delete", wrap(cb.Delete().Before("gorm:delete"), before), wrap(cb.Delete().After("gorm:delete"), after("delete"))},
		{"row", wrap(cb.Row().Before("gorm:row"), before), wrap(cb.Row().After("gorm:row"), after("row"))},
		{"raw", wrap(cb.Raw().Before("gorm:raw"), before), wrap(cb.Raw().After("gorm:raw"), after("raw"))},
	}
	for _, h := range hooks {
		if err := h.before("prompt2cad:before_" + h.op); err != nil {
			return fmt.Errorf("register %s callback: %w", h.op, err)
		}
		if err := h.after("prompt2cad:after_" + h.op); err != nil {
			return fmt.Errorf("register %s callback: %w", h.op, err)
		}
	}
	return nil
}

type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

func wrap(p callbackRegistrar, fn func(*gorm.DB)) func(string) error {
	return func(name string) error { return p.Register(name, fn) }
}
