package extract

import (
	"strings"

	"github.com/docgraph/docgraph/engine/domain"
)

const promptHeader = `You are an expert in SAP HANA on VMware systems. Extract structured information from this technical documentation chunk.

SCHEMA DEFINITION:
Entity Types:
`

const promptFooter = `
Extract entities and relationships. Output MUST be valid JSON:

{
  "entities": [
    {"type": "Concept", "name": "NUMA Optimization", "description": "brief description"},
    {"type": "Parameter", "name": "numa.nodeAffinity", "description": "controls NUMA node assignment"}
  ],
  "relationships": [
    {"from": "NUMA Optimization", "to": "vSphere", "type": "INVOLVES_COMPONENT"},
    {"from": "Configure NUMA settings", "to": "numa.nodeAffinity", "type": "SETS_PARAMETER"}
  ],
  "chunk_summary": "Brief summary of what this chunk discusses"
}

Focus on SAP HANA performance, VMware configuration, and system optimization concepts.`

// Prompt builds the extraction prompt for one chunk.
func Prompt(chunk string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, t := range domain.OrderedEntityTypes {
		b.WriteString("- " + string(t) + ": " + domain.EntityTypes[t] + "\n")
	}
	b.WriteString("\nRelationship Types:\n")
	for _, r := range domain.ExtractedRelationTypes {
		b.WriteString("- " + string(r) + ": " + domain.RelationTypes[r] + "\n")
	}
	b.WriteString("\nTEXT CHUNK:\n")
	b.WriteString(chunk)
	b.WriteString("\n")
	b.WriteString(promptFooter)
	return b.String()
}
