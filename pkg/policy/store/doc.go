// Package store holds the active policy module and swaps it on reload.
//
// The active module sits behind an atomic pointer. Evaluations take a Lease,
// which pins the module for the duration of one call without any lock; a
// reload validates and compiles the candidate first and only then swaps the
// pointer, so a rejected candidate never displaces the running module and no
// reader ever sees a partial one. A replaced module is closed once the last
// in-flight lease on it is released.
//
//	lease, err := st.Acquire()
//	if err != nil {
//		return err
//	}
//	defer lease.Release()
//	out := engine.Evaluate(ctx, lease.Module(), input)
package store
