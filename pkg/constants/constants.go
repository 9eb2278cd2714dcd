package constants

import "time"

const (
	// DefaultMaxAttempts is the default attempt cap for readiness polling.
	// Deployed variants of the bootstrap scripts used caps between 60 and 99.
	DefaultMaxAttempts = 60
	// DefaultProbeInterval is the default pause between two readiness probes
	DefaultProbeInterval = 5 * time.Second

	SidecarBaseDir = "/warehouse-bootstrap"

	// DefaultInitScript is the path where the source initialization script is mounted in the sidecar
	DefaultInitScript = SidecarBaseDir + "/init.sql"

	// DefaultBackupStageDir is the directory inside the source database container from
	// which RESTORE DATABASE reads its backup media
	DefaultBackupStageDir = "/var/opt/mssql/backup"

	// SourceDatabase is the sample warehouse database restored into the source engine
	SourceDatabase = "AdventureWorksDW2022"
)
