// Package ingest carries lifecycle hooks across process boundaries.
//
// A host that cannot link the monitor directly (a browser, a Node process, a
// recorded session) sends one JSON object per hook call. Decode validates a
// single event, Reader streams a JSON Lines log, and Player turns events back
// into hook calls on a Target, standing in for the remote task handles.
package ingest
