// Package caption provides the credit ledger and job lifecycle engine behind
// a client-side video translation front-end.
//
// Caption is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - An integer credit ledger with two pools per account (signed-in and
//     anonymous) and an append-only history
//   - A three-phase reserve / confirm / refund protocol so work is paid for
//     exactly once and every failure path refunds
//   - A one-time free trial gate with duration and language limits
//   - A storage policy with capacity tiers, a retention period, purchasable
//     extensions, and a background expiry sweep
//   - A job state machine driving a pluggable translation pipeline
//
// # Quick Start
//
// Create a service instance with your preferred store:
//
//	import (
//	    caption "github.com/Jamesmini007/AX2-Caption"
//	    "github.com/Jamesmini007/AX2-Caption/store/memory"
//	)
//
//	svc := caption.New(memory.New())
//
//	// Start the service (begins background workers)
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Stop()
//
// # Core Concepts
//
// Every operation takes a Session identifying the account and whether it is
// signed in; the two states keep fully separate credit pools:
//
//	sess := caption.Session{AccountID: "acct-1", SignedIn: true}
//
// A translation costs one credit per 6 seconds of video plus a flat 10
// credits per target language:
//
//	required := credit.Required(278, 2) // 66 credits
//
// Submitting a job reserves the credits, runs the pipeline, and resolves the
// reservation exactly once:
//
//	handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
//	    Title:           "talk.mp4",
//	    DurationSeconds: 278,
//	    TargetLanguages: []string{"ko", "ja"},
//	})
//	result, err := handle.Wait(ctx)
//
// All credit calculations use integer arithmetic; there is no floating-point
// money anywhere in the ledger.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	job_01h2xcejqtf2nbrexx3vqjhp41  // Job ID
//	rsv_01h2xcejqtf2nbrexx3vqjhp41  // Reservation ID
//	vid_01h455vb4pex5vsknk084sn02q  // Artifact ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package caption
