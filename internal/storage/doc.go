// Package storage provides the persistence backends for the medication
// schedule (schedule.Store). Drivers: "file" (CSV table), "sqlite",
// "postgres". All drivers serialize mutations and persist immediately.
package storage
