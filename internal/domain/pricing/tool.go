package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ToolName is the canonical on-chain name of a dashboard tool
type ToolName string

// Tools offered by the dashboard. The on-chain registry is keyed by the
// keccak256 of these exact strings, so they must never be renamed.
const (
	MetadataAnalysis    ToolName = "METADATA_ANALYSIS"
	ContentOptimization ToolName = "CONTENT_OPTIMIZATION"
	KeywordAnalysis     ToolName = "KEYWORD_ANALYSIS"
	TechnicalSEO        ToolName = "TECHNICAL_SEO"
	PerformanceAudit    ToolName = "PERFORMANCE_AUDIT"
	SmartContractAudit  ToolName = "SMART_CONTRACT_AUDIT"
	SocialSignals       ToolName = "SOCIAL_SIGNALS"
	CompetitorAnalysis  ToolName = "COMPETITOR_ANALYSIS"
)

// AllTools lists every known tool in display order
var AllTools = []ToolName{
	MetadataAnalysis,
	ContentOptimization,
	KeywordAnalysis,
	TechnicalSEO,
	PerformanceAudit,
	SmartContractAudit,
	SocialSignals,
	CompetitorAnalysis,
}

// ErrUnknownTool is returned when a name is not part of the tool catalogue
var ErrUnknownTool = errors.New("unknown tool")

// ToolID is the 32-byte registry key of a tool
type ToolID = common.Hash

// DeriveToolID returns keccak256 over the UTF-8 bytes of name. It matches
// Solidity's keccak256(abi.encodePacked(name)): case-sensitive, no trimming.
func DeriveToolID(name string) ToolID {
	return crypto.Keccak256Hash([]byte(name))
}

// ID returns the registry key of the tool
func (t ToolName) ID() ToolID {
	return DeriveToolID(string(t))
}

// Valid reports whether t is part of the catalogue
func (t ToolName) Valid() bool {
	for _, known := range AllTools {
		if known == t {
			return true
		}
	}
	return false
}

// ParseToolName validates untrusted input against the catalogue.
// Names are matched exactly; callers must not upper-case on the user's behalf
// since the derived id is case-sensitive.
func ParseToolName(s string) (ToolName, error) {
	name := ToolName(s)
	if !name.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
	}
	return name, nil
}

// ParseToolNames validates a list of names, failing on the first unknown one
func ParseToolNames(names []string) ([]ToolName, error) {
	tools := make([]ToolName, 0, len(names))
	for _, s := range names {
		name, err := ParseToolName(s)
		if err != nil {
			return nil, err
		}
		tools = append(tools, name)
	}
	return tools, nil
}

// ToolByID resolves a registry key back to its catalogue name
func ToolByID(id ToolID) (ToolName, bool) {
	for _, name := range AllTools {
		if name.ID() == id {
			return name, true
		}
	}
	return "", false
}

// IDs converts tool names to registry keys preserving order
func IDs(names []ToolName) []ToolID {
	ids := make([]ToolID, len(names))
	for i, name := range names {
		ids[i] = name.ID()
	}
	return ids
}

// Usage is a tally of purchases per tool
type Usage map[ToolName]int64

// Add increments the tally for name, rejecting names outside the catalogue
func (u Usage) Add(name ToolName, n int64) error {
	if !name.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	u[name] += n
	return nil
}

// String renders names as a comma-separated list
func String(names []ToolName) string {
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = string(name)
	}
	return strings.Join(parts, ",")
}
