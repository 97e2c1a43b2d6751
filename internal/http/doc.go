// Package http provides HTTP handlers and middleware for the conference scheduler API.
//
// The router exposes the following endpoints:
//   - PUT /conferences/{id}, GET /conferences/{id}: conference definition with its time
//     window, slot duration and ordered rooms, exchanging the `conferenceDTO` payload
//     defined in conference_handler.go.
//   - PUT /conferences/{id}/papers: replaces the conference's paper list. Body:
//     {"papers":[{"id","title","status","metadataComplete"}]}.
//   - POST /conferences/{id}/schedule/generate: allocates accepted papers and stores the
//     result as the draft schedule.
//   - GET /conferences/{id}/schedule/draft: the current schedule whatever its status.
//   - PATCH /conferences/{id}/schedule/entries/{entryID}: moves one entry. Body:
//     {"roomId","start","end","scheduleVersion"}; an omitted field keeps its value and an
//     empty string clears it.
//   - POST /conferences/{id}/schedule/save, POST /conferences/{id}/schedule/publish:
//     status transitions.
//   - GET /conferences/{id}/schedule/published and the published.xlsx / published.ics
//     downloads: the public view, available without a token once the schedule is published.
//
// Rejected operations answer with {"error_code","message"} where error_code is the
// reason's wire name: input reasons map to 422, lookups to 404, conflicts to 409, a
// generation timeout to 503 and storage failures to 500.
package http
