// Package reconcile provides a reply-driven balance reconciliation
// engine for Go applications.
//
// Reconcile is designed as a library, not a service. End users submit
// balance top-up charges and service orders; a human administrator
// approves or rejects each one by replying to the chat notification
// that represents it. The engine ingests those replies from a polled
// message stream, correlates each reply to the exact pending request
// it answers, extracts the decision from free text, and applies an
// at-most-once balance mutation to the authoritative store before
// propagating it to a best-effort secondary mirror.
//
// # Quick Start
//
// Create an engine with your preferred store and message source:
//
//	import (
//	    "github.com/xraph/reconcile"
//	    "github.com/xraph/reconcile/source/longpoll"
//	    "github.com/xraph/reconcile/store/sqlite"
//	)
//
//	st := sqlite.New(db)
//	src := longpoll.New(providerURL)
//
//	engine := reconcile.New(st, src,
//	    reconcile.WithChannel(adminChannelToken),
//	)
//
//	// Start the engine (begins per-channel polling workers)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Requests come in two variants that share a lifecycle. A Charge asks
// for a balance top-up; an Order asks for a service and may debit the
// balance eagerly at creation:
//
//	charge, err := engine.CreateCharge(ctx, profileID, reconcile.SYP(1000), "transfer")
//
// Once the outbound chat notification for a request has been sent, its
// message handle is bound to the request and becomes the join key for
// the administrator's reply:
//
//	err := engine.RegisterChargeHandle(ctx, charge.ID, handle)
//
// From then on the polling workers do the rest: a reply of
// "تم, الرصيد: 1,000 للرقم الشخصي 555" credits profile 555, resolves
// the charge, appends a user notification, and mirrors the balance.
//
// # Consistency
//
// The local store is authoritative. Cursors into the message stream
// advance only after the local commit, so redelivered replies are
// absorbed by the per-request resolved guard rather than credited
// twice. Mirror writes are retried on a linear backoff and abandoned
// after a fixed budget; reads reconcile the two stores by taking the
// larger balance, never letting a stale mirror lower a fresher local
// value.
//
// All monetary calculations use integer arithmetic to avoid
// floating-point precision issues. The Money type represents amounts
// in the smallest currency unit, which for zero-decimal currencies
// like the Syrian pound is the pound itself.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	ord_01h2xcejqtf2nbrexx3vqjhp41  // Order ID
//	chg_01h2xcejqtf2nbrexx3vqjhp41  // Charge ID
//	ntf_01h455vb4pex5vsknk084sn02q  // Notification ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package reconcile
