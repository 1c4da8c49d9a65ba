package client

import (
	"strings"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
)

// Backend endpoints. All are POST with a JSON body.
const (
	EndpointPersonal = "/case/personal/query"
	EndpointBatch    = "/case/batch/query"
	EndpointAssign   = "/case/manual-assign"
)

// EndpointFor returns the list endpoint for a case kind.
func EndpointFor(kind cases.Kind) string {
	if kind == cases.KindBatch {
		return EndpointBatch
	}
	return EndpointPersonal
}

// Environment maps an application hostname to its API gateway.
type Environment struct {
	Name string
	// HostMatch is a substring of the application hostname.
	HostMatch string
	BaseURL   string
}

// Environments is checked in order; the first HostMatch contained in the
// hostname wins.
var Environments = []Environment{
	{Name: "local", HostMatch: "localhost", BaseURL: "http://localhost:8081/api"},
	{Name: "dev", HostMatch: "-dev.", BaseURL: "https://casedesk-dev.internal/api"},
	{Name: "sit", HostMatch: "-sit.", BaseURL: "https://casedesk-sit.internal/api"},
	{Name: "uat", HostMatch: "-uat.", BaseURL: "https://casedesk-uat.internal/api"},
}

// Production is used when no environment matches.
var Production = Environment{Name: "prod", BaseURL: "https://casedesk.internal/api"}

// ResolveEnvironment selects the environment for an application hostname.
func ResolveEnvironment(host string) Environment {
	host = strings.ToLower(strings.TrimSpace(host))
	for _, env := range Environments {
		if host != "" && strings.Contains(host, env.HostMatch) {
			return env
		}
	}
	return Production
}
