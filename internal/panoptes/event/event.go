// Package event assembles the audit record handed to transports.
package event

import (
	"time"

	"github.com/vaibhaw-/panoptes/internal/panoptes/auditctx"
	"github.com/vaibhaw-/panoptes/internal/panoptes/sqlparse"
)

const (
	timestampLayout = "2006-01-02T15:04:05.000Z"
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05"
)

// DBInfo describes the database an intercepted statement ran against.
type DBInfo struct {
	Engine string `json:"engine"`
	Host   string `json:"host,omitempty"`
	Name   string `json:"name,omitempty"`
	User   string `json:"user,omitempty"`
	Schema string `json:"schema,omitempty"`
}

type Meta struct {
	EventID       string  `json:"eventId,omitempty"`
	AppName       string  `json:"appName"`
	Environment   string  `json:"environment"`
	SourceApp     string  `json:"sourceApp,omitempty"`
	Timestamp     string  `json:"timestamp"`
	TimestampUnix int64   `json:"timestampUnix"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	DurationMS    float64 `json:"durationMs"`
	Reason        string  `json:"reason"`
}

type Operation struct {
	Type           sqlparse.OperationType `json:"type"`
	Category       sqlparse.Category      `json:"category"`
	MainTable      string                 `json:"mainTable,omitempty"`
	TablesInvolved []string               `json:"tablesInvolved"`
}

type SQL struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Parameters []any  `json:"parameters"`

	// RowCount is nil when the driver did not report one.
	RowCount *int64 `json:"rowCount"`

	Success      bool   `json:"success"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Row is one captured table row keyed by column name.
type Row map[string]any

type Data struct {
	Before []Row `json:"before,omitempty"`
	After  []Row `json:"after,omitempty"`
}

type Actor struct {
	ActorType   auditctx.ActorType `json:"actorType,omitempty"`
	AppUserID   any                `json:"appUserId,omitempty"`
	AppUsername string             `json:"appUsername,omitempty"`
	AppRoles    []string           `json:"appRoles,omitempty"`
	TenantID    any                `json:"tenantId,omitempty"`
}

type Request struct {
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Event is the immutable audit record for one statement.
type Event struct {
	Meta      Meta      `json:"meta"`
	DB        DBInfo    `json:"db"`
	Operation Operation `json:"operation"`
	SQL       SQL       `json:"sql"`
	Data      *Data     `json:"data,omitempty"`
	Actor     Actor     `json:"actor"`
	Request   Request   `json:"request"`
}

// Input collects everything Build needs. ErrorCode and ErrorMessage are only
// used when Success is false.
type Input struct {
	EventID     string
	AppName     string
	Environment string

	DB         DBInfo
	SQL        string
	Params     []any
	DurationMS float64
	RowCount   *int64

	Success      bool
	ErrorCode    string
	ErrorMessage string

	User   *auditctx.UserContext
	Parsed sqlparse.ParsedSQL
	Reason string

	Before []Row
	After  []Row

	Now time.Time
}

// Build assembles the event. Every time field is derived from in.Now. Parameter,
// row and actor id values that cannot be encoded as JSON are replaced so the
// event still serializes.
func Build(in Input) Event {
	now := in.Now.UTC()

	params := safeValues(in.Params)
	tables := in.Parsed.TablesInvolved
	if tables == nil {
		tables = []string{}
	}

	ev := Event{
		Meta: Meta{
			EventID:       in.EventID,
			AppName:       in.AppName,
			Environment:   in.Environment,
			Timestamp:     now.Format(timestampLayout),
			TimestampUnix: now.Unix(),
			Date:          now.Format(dateLayout),
			Time:          now.Format(timeLayout),
			DurationMS:    in.DurationMS,
			Reason:        in.Reason,
		},
		DB: in.DB,
		Operation: Operation{
			Type:           in.Parsed.OperationType,
			Category:       in.Parsed.OperationCategory,
			MainTable:      in.Parsed.MainTable,
			TablesInvolved: tables,
		},
		SQL: SQL{
			Raw:        in.SQL,
			Normalized: in.Parsed.NormalizedSQL,
			Parameters: params,
			RowCount:   in.RowCount,
			Success:    in.Success,
		},
	}

	if !in.Success {
		ev.SQL.ErrorCode = in.ErrorCode
		ev.SQL.ErrorMessage = in.ErrorMessage
	}

	if len(in.Before) > 0 || len(in.After) > 0 {
		ev.Data = &Data{}
		if len(in.Before) > 0 {
			ev.Data.Before = safeRows(in.Before)
		}
		if len(in.After) > 0 {
			ev.Data.After = safeRows(in.After)
		}
	}

	if u := in.User; u != nil {
		ev.Meta.SourceApp = u.SourceApp
		ev.Actor = Actor{
			ActorType:   u.ActorType,
			AppUserID:   jsonSafe(u.AppUserID),
			AppUsername: u.AppUsername,
			AppRoles:    u.AppRoles,
			TenantID:    jsonSafe(u.TenantID),
		}
		ev.Request = Request{
			IPAddress: u.IPAddress,
			UserAgent: u.UserAgent,
			RequestID: u.RequestID,
			SessionID: u.SessionID,
		}
	}

	return ev
}
