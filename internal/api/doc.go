// Package api is the HTTP client for the agent backend's history endpoints.
//
// Endpoints (relative to api.base_url):
//   - GET    /agents/{agent}/messages?limit=&cursor=&conversation_id=
//   - GET    /agents/{agent}/conversations
//   - DELETE /agents/{agent}/conversations/{id}
//
// Message history seeds a chat transcript before the socket connects; the
// live conversation itself never goes through this client.
package api
