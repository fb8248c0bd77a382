// Package models defines the client-side data types shared by the store,
// the remote gateway and the sync services: catalog entities, pending
// vouchers, the session credential and the structured results reported to
// callers.
package models
