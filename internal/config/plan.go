package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DetectPlan reads <claudeDir>/.claude.json to determine the billing
// plan label stamped on indexed sessions. Absence of the file or field
// yields "api".
func DetectPlan(claudeDir string) string {
	data, err := os.ReadFile(filepath.Join(claudeDir, ".claude.json"))
	if err != nil {
		return "api"
	}

	var raw struct {
		BillingType string `json:"billingType"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "api"
	}

	switch raw.BillingType {
	case "stripe_subscription":
		return "max"
	case "":
		return "api"
	default:
		return "pro"
	}
}
