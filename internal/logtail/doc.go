// Package logtail reads the end of the kleis log file for the activity
// pane.
//
// Read keeps a ring buffer of the last maxLines lines, so memory stays
// bounded however large the file grows. Parse turns a line written by
// either logrus formatter back into an Entry:
//
//	{"level":"debug","msg":"item added","id":"SKU001","time":"..."}
//	time="..." level=debug msg="item added" id=SKU001
//
// Lines in neither format are kept verbatim as the message.
package logtail
