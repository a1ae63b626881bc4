package provider

import (
	"context"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/errs"
)

// checkCancel reports whether ctx has already been cancelled, returning
// errs.ErrCancelled when it has. Every provider calls this once on entry.
// References, WorkspaceSymbols, Implementation and SignatureHelp call it
// again once per URI of their index scan, and InlayHints once per line;
// the candidate scans behind Completion and CodeActions, and InlayHints'
// method-parameter pass, do not check inside their loops.
func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errs.ErrCancelled
	default:
		return nil
	}
}
