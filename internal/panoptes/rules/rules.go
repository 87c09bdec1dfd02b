// Package rules decides whether a classified statement is audited.
package rules

import (
	"fmt"
	"strings"

	"github.com/vaibhaw-/panoptes/internal/panoptes/config"
	"github.com/vaibhaw-/panoptes/internal/panoptes/sqlparse"
)

// ReasonDefault is the reason attached to statements no rule rejected.
const ReasonDefault = "default:allowed"

// Verdict is the outcome of Decide. Reason names the rule that fired.
type Verdict struct {
	Audit  bool
	Reason string
}

// Decide applies, in order: the global operation switch, the main table's
// rule (enabled flag, then operation allow-list), then the default. Table
// rules only ever narrow what the global switches let through.
func Decide(cfg config.Config, parsed sqlparse.ParsedSQL) Verdict {
	op := parsed.OperationType

	if flag := operationFlag(cfg.OperationRules, op); flag != nil && !*flag {
		return Verdict{Reason: fmt.Sprintf("operationRules:%s=false", op)}
	}

	if parsed.MainTable != "" {
		if rule, ok := cfg.TableRules[parsed.MainTable]; ok {
			if !rule.IsEnabled() {
				return Verdict{Reason: fmt.Sprintf("tableRules:%s:disabled", parsed.MainTable)}
			}
			if len(rule.AuditedOperations) > 0 && !allows(rule.AuditedOperations, op) {
				return Verdict{Reason: fmt.Sprintf("tableRules:%s:op_not_in_auditedOperations", parsed.MainTable)}
			}
		}
	}

	return Verdict{Audit: true, Reason: ReasonDefault}
}

func operationFlag(r config.OperationRules, op sqlparse.OperationType) *bool {
	switch op {
	case sqlparse.OpSelect:
		return r.AuditSelect
	case sqlparse.OpInsert:
		return r.AuditInsert
	case sqlparse.OpUpdate:
		return r.AuditUpdate
	case sqlparse.OpDelete:
		return r.AuditDelete
	case sqlparse.OpDDL:
		return r.AuditDDL
	}
	return nil
}

func allows(ops []string, op sqlparse.OperationType) bool {
	for _, o := range ops {
		if strings.EqualFold(strings.TrimSpace(o), string(op)) {
			return true
		}
	}
	return false
}
