package storage

import (
	"strings"

	"github.com/psds-microservice/ticket-desk/internal/model"
)

// Older desks wrote Spanish headers and values; they are folded into the
// canonical schema on load and written back in canonical form.
var columnAliases = map[string]string{
	"id":          colID,
	"created_at":  colCreatedAt,
	"fecha":       colCreatedAt,
	"customer":    colCustomer,
	"cliente":     colCustomer,
	"category":    colCategory,
	"categoria":   colCategory,
	"priority":    colPriority,
	"prioridad":   colPriority,
	"description": colDescription,
	"descripcion": colDescription,
	"status":      colStatus,
	"estado":      colStatus,
	"solution":    colSolution,
	"solucion":    colSolution,
	"cost":        colCost,
	"cost_usd":    colCost,
	"costo":       colCost,
	"costo_usd":   colCost,
}

var statusAliases = map[string]model.TicketStatus{
	"open":     model.TicketStatusOpen,
	"abierto":  model.TicketStatusOpen,
	"resolved": model.TicketStatusResolved,
	"resuelto": model.TicketStatusResolved,
}

var priorityAliases = map[string]model.Priority{
	"low":     model.PriorityLow,
	"baja":    model.PriorityLow,
	"medium":  model.PriorityMedium,
	"media":   model.PriorityMedium,
	"high":    model.PriorityHigh,
	"alta":    model.PriorityHigh,
	"urgent":  model.PriorityUrgent,
	"urgente": model.PriorityUrgent,
}

var categoryAliases = map[string]model.Category{
	"maintenance":   model.CategoryMaintenance,
	"mantenimiento": model.CategoryMaintenance,
	"software":      model.CategorySoftware,
	"hardware":      model.CategoryHardware,
	"networking":    model.CategoryNetworking,
	"redes":         model.CategoryNetworking,
	"cameras":       model.CategoryCameras,
	"camaras":       model.CategoryCameras,
}

var accentFold = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u",
	"ñ", "n", "Ñ", "n",
)

func fold(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(accentFold.Replace(strings.TrimSpace(s)))
}

// canonicalColumn returns "" for columns outside the schema (e.g. a pandas index).
func canonicalColumn(name string) string {
	return columnAliases[strings.ReplaceAll(fold(name), " ", "_")]
}

// normalizeStatus treats anything that is not a resolved marker as open.
func normalizeStatus(s string) model.TicketStatus {
	if st, ok := statusAliases[fold(s)]; ok {
		return st
	}
	return model.TicketStatusOpen
}

func normalizePriority(s string) model.Priority {
	if p, ok := priorityAliases[fold(s)]; ok {
		return p
	}
	return model.Priority(strings.TrimSpace(s))
}

func normalizeCategory(s string) model.Category {
	if c, ok := categoryAliases[fold(s)]; ok {
		return c
	}
	return model.Category(strings.TrimSpace(s))
}

func normalizeSolution(s string) string {
	if fold(s) == "pendiente" {
		return model.SolutionPending
	}
	return s
}
