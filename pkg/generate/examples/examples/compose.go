package examples

import "github.com/dwhkit/warehouse-bootstrap/pkg/constants"

const (
	TutorialStackName = "tutorial-stack"

	sqlserverContainerImage = "mcr.microsoft.com/mssql/server:2022-latest"
	postgresContainerImage  = "postgres:16-alpine"
	airflowContainerImage   = "apache/airflow:2.9.2"
)

// Compose mirrors the subset of the docker compose schema the tutorial stack needs.
type Compose struct {
	Services map[string]Service `json:"services"`
	Volumes  map[string]Volume  `json:"volumes,omitempty"`
}

type Volume struct{}

type Service struct {
	Image       string               `json:"image,omitempty"`
	Build       string               `json:"build,omitempty"`
	Command     []string             `json:"command,omitempty"`
	Environment map[string]string    `json:"environment,omitempty"`
	Ports       []string             `json:"ports,omitempty"`
	Volumes     []string             `json:"volumes,omitempty"`
	DependsOn   map[string]DependsOn `json:"depends_on,omitempty"`
	Restart     string               `json:"restart,omitempty"`
}

type DependsOn struct {
	Condition string `json:"condition"`
}

// TutorialStack returns the example deployment: the source engine, the sidecar,
// the destination database and the workflow engine, which only starts once the
// sidecar exited successfully.
func TutorialStack() *Compose {
	return &Compose{
		Services: map[string]Service{
			"sqlserver": {
				Image: sqlserverContainerImage,
				Environment: map[string]string{
					"ACCEPT_EULA":       "Y",
					"MSSQL_SA_PASSWORD": "${SA_PASSWORD}",
				},
				Ports: []string{"1433:1433"},
				Volumes: []string{
					"mssql-data:/var/opt/mssql/data",
					"mssql-backup:" + constants.DefaultBackupStageDir,
				},
			},
			"postgres": {
				Image: postgresContainerImage,
				Environment: map[string]string{
					"POSTGRES_PASSWORD": "${POSTGRES_PASSWORD}",
				},
				Ports:   []string{"5432:5432"},
				Volumes: []string{"pg-data:/var/lib/postgresql/data"},
			},
			"warehouse-bootstrap": {
				Build:   ".",
				Command: []string{"warehouse-bootstrap", "start"},
				Environment: map[string]string{
					"SA_PASSWORD":                          "${SA_PASSWORD}",
					"POSTGRES_PASSWORD":                    "${POSTGRES_PASSWORD}",
					"ETL_USER":                             "${ETL_USER}",
					"ETL_PASS":                             "${ETL_PASS}",
					"WAREHOUSE_BOOTSTRAP_BACKUP_MEDIA_DIR": constants.SidecarBaseDir + "/media",
				},
				Ports: []string{"8000:8000"},
				Volumes: []string{
					"./backups:" + constants.SidecarBaseDir + "/media:ro",
					"./sql/init.sql:" + constants.DefaultInitScript + ":ro",
					"mssql-backup:" + constants.DefaultBackupStageDir,
				},
				DependsOn: map[string]DependsOn{
					"sqlserver": {Condition: "service_started"},
					"postgres":  {Condition: "service_started"},
				},
			},
			"airflow": {
				Image:   airflowContainerImage,
				Command: []string{"standalone"},
				Environment: map[string]string{
					"ETL_USER": "${ETL_USER}",
					"ETL_PASS": "${ETL_PASS}",
				},
				Ports: []string{"8080:8080"},
				DependsOn: map[string]DependsOn{
					"warehouse-bootstrap": {Condition: "service_completed_successfully"},
				},
			},
		},
		Volumes: map[string]Volume{
			"mssql-data":   {},
			"mssql-backup": {},
			"pg-data":      {},
		},
	}
}
