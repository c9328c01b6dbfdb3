// Package connector ties the sandbox engine, the module store and the reload
// sources together behind the operations the HTTP layer needs.
//
// # Basic Usage
//
//	c, err := connector.New(ctx, cfg, logger, connector.WithMetrics(collector))
//	if err != nil {
//	    return err // *store.StartupError when the artifact is missing or invalid
//	}
//	defer c.Close(context.Background())
//
//	if err := c.Start(ctx); err != nil {
//	    return err
//	}
//
//	out := c.EvaluateRequest(ctx, body)
//	if out.Allowed {
//	    // grant access
//	}
//
// # Reloads
//
// Start watches policy.path with fsnotify when policy.watch is set and polls
// it on policy.poll_schedule when one is configured. Reload runs the same
// path on demand. A rejected candidate never replaces the active module.
//
// # Fail-closed
//
// Every outcome that did not come from a completed guest call is a deny:
// no active module, malformed input, sandbox faults and timeouts.
package connector
