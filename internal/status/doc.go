// Package status exposes a failover coordinator's per-host state over HTTP
// and fetches it back for the command line.
//
// Endpoints:
//
//	GET /health → 200 OK
//	GET /status → {"current":"db-1:5432","hosts":[{"addr":"db-1:5432","state":"connected",...}]}
package status
