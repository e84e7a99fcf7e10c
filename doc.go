// Package ssi provides a bidirectional service invocation layer.
//
// A caller provisions a session on a named resource, executes requests
// against it and pulls each result, whatever its shape (in-memory data, an
// error, a file range or a stream), through a Read/Send loop that is
// independent of when the session produces it:
//
//   - resource  – what to provision, and why provisioning failed
//   - provision – asynchronous provisioning with redirect and throttle outcomes
//   - request   – the request object bridging session pushes and consumer pulls
//   - session   – the contract sessions implement
//
// Most applications use the Service facade exposed by the root package:
//
//	srv, _ := ssi.New(ssi.WithHandler("echo", echo.New(0, logger)))
//	_ = srv.Start(ctx)
//	sess, _ := srv.Acquire(ctx, resource.New("echo", "", "", nil))
//	out, _ := srv.Call(ctx, sess, []byte("ping"))
package ssi
