// config.go - Haupt-Konfigurationsfunktionen fuer tfmin
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (TFMIN_DEBUG)
// - BatchSize: Batch-Groesse fuer unbekannte Dimensionen (TFMIN_BATCH_SIZE)
// - NumParallel: Parallele Kernel-Generierung (TFMIN_NUM_PARALLEL)
// - Prefix: Praefix fuer Puffernamen (TFMIN_PREFIX)
// - KernelStatus: Minimaler Kernel-Status (TFMIN_KERNEL_STATUS)
// - ExternWeights: Gewichte als extern deklarieren (TFMIN_EXTERN_WEIGHTS)
//
// Getter und Export sind ausgelagert nach config_utils.go
package envconfig

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via TFMIN_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("TFMIN_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

var (
	// BatchSize ersetzt unbekannte (-1) Dimensionen beim Export
	BatchSize = Uint("TFMIN_BATCH_SIZE", 1)

	// Prefix wird allen erzeugten Puffernamen vorangestellt
	Prefix = String("TFMIN_PREFIX")

	// KernelStatus ist der minimale Entwicklungsstatus akzeptierter Kernel
	KernelStatus = String("TFMIN_KERNEL_STATUS")

	// ExternWeights deklariert Gewichte extern statt sie einzubetten
	ExternWeights = Bool("TFMIN_EXTERN_WEIGHTS")
)

// NumParallel gibt die Anzahl parallel erzeugter Operationen zurueck
// Konfigurierbar via TFMIN_NUM_PARALLEL
// Default: GOMAXPROCS
func NumParallel() int {
	if n := Uint("TFMIN_NUM_PARALLEL", 0)(); n > 0 {
		return int(n)
	}

	return runtime.GOMAXPROCS(0)
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
