// Package client is the remote gateway: a thin JSON-over-HTTP client for the
// estate back office API.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface): company list,
//     login, catalog fetch, voucher submission, authorization actions and a
//     health probe.
//  2. An HTTP implementation (see HTTPClient) that resolves the base address
//     on every call, rebuilds its connection handle when that address
//     changes, attaches the bearer token and device id, and bounds every call
//     with a timeout.
//  3. An envelope parser (see ParseEnvelope) that normalizes the standard
//     {status,data,totalCount,message} and the legacy
//     {success,message,data,dataList} response shapes into one tagged Result.
//
// # Error Handling
//
// Conditions are exposed as sentinel errors matched with errors.Is:
// ErrUnavailable (transport failure, timeout, no address), ErrProtocol
// (unrecognized body), ErrUnauthorized (401). A well-formed but unsuccessful
// envelope on a call that requires success is a *RemoteError.
//
// A 401 on any call other than login and the company list is reported to
// the UnauthorizedHandler together with the token that was rejected. The
// call is not retried.
package client
