// Package apiclient is the request orchestrator for the MailerSuite API.
//
// Every call goes through the same pipeline:
//
//  1. The request is reduced to a fingerprint (method, path, sorted query,
//     identity headers and canonical JSON body).
//  2. GET requests made WithCache are answered from a TTL cache while fresh.
//  3. Identical requests already in flight share one network call.
//  4. The network call is retried with exponential backoff on transient
//     failures, up to the attempt budget (1 by default).
//  5. The bearer token is read from an auth.Store on every attempt; a 401
//     clears the store, calls the unauthorized handler and is never retried.
//  6. Notifications are emitted as side effects and never change the result.
//
// Basic usage:
//
//	client, err := apiclient.New("https://api.example.com/v1",
//	    apiclient.WithTokenStore(store),
//	    apiclient.WithNotifier(apiclient.NewLogNotifier(logger)),
//	)
//	lists, err := apiclient.Get[[]List](ctx, client, "/lists", apiclient.WithCache())
package apiclient
