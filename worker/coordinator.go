package worker

import (
	"context"

	"github.com/sourcekitd/langworker/lsp"
)

// Coordinator is the upstream collaborator the worker calls out to: the
// piece of the LSP server that owns the wire connection and, in a
// multi-worker deployment, the routing between workers and the on-disk
// index (spec §1, §4.5, §6). Worker never touches lsp.Connection
// directly so it can be driven from tests with a fake.
type Coordinator interface {
	// PublishDiagnostics sends textDocument/publishDiagnostics, mirroring
	// ConradIrwin/conl-lsp's Server.PublishDiagnostics.
	PublishDiagnostics(uri lsp.DocumentURI, version int32, diagnostics []lsp.Diagnostic)

	// ReopenDocuments is invoked when the worker transitions into
	// SemanticFunctionalityDisabled, asking the coordinator to replay
	// textDocument/didOpen for every document the client still has open
	// (spec §4.5 state table).
	ReopenDocuments(ctx context.Context)

	// ApplyEdit issues workspace/applyEdit and reports whether the client
	// applied it.
	ApplyEdit(ctx context.Context, edit lsp.WorkspaceEdit) (applied bool, failureReason string)
}
