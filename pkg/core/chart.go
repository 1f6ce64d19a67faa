package core

// Artifact kinds.
const (
	ArtifactGraph = "graph"
	ArtifactError = "error"
)

// ChartArtifact is the terminal chart result handed to the transport layer.
// Payload is either structured chart data (traces + layout, chart config) or
// an embedded image ({src, alt}).
type ChartArtifact struct {
	Kind        string
	Format      string
	Description string
	Payload     map[string]any
	// Fallback marks the fixed default chart produced when synthesis or
	// rendering failed.
	Fallback bool
	Message  string
}

// GraphArtifact builds a graph artifact.
func GraphArtifact(format, description string, payload map[string]any) ChartArtifact {
	return ChartArtifact{
		Kind:        ArtifactGraph,
		Format:      format,
		Description: description,
		Payload:     payload,
	}
}

// ErrorArtifact builds an error artifact.
func ErrorArtifact(message string) ChartArtifact {
	return ChartArtifact{Kind: ArtifactError, Message: message}
}
