// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"fmt"

	"github.com/ghastnet/ghastd/util/daghash"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about various DAG events.
type NotificationCallback func(*Notification)

// Constants for the type of a notification message.
const (
	// NTBlockAdded indicates the associated block was added into the DAG.
	NTBlockAdded NotificationType = iota

	// NTChainChanged indicates that the pivot chain changed: blocks were
	// removed from it and/or added to it.
	NTChainChanged

	// NTEpochSealed indicates that a new epoch was anchored on the pivot
	// chain and handed to execution.
	NTEpochSealed
)

// notificationTypeStrings is a map of notification types back to their
// constant names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTBlockAdded:   "NTBlockAdded",
	NTChainChanged: "NTChainChanged",
	NTEpochSealed:  "NTEpochSealed",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// BlockAddedNotificationData defines data to be sent along with a
// BlockAdded notification.
type BlockAddedNotificationData struct {
	Hash   *daghash.Hash
	Height uint64
}

// ChainChangedNotificationData defines data to be sent along with a
// ChainChanged notification.
type ChainChangedNotificationData struct {
	RemovedChainBlockHashes []*daghash.Hash
	AddedChainBlockHashes   []*daghash.Hash
}

// EpochSealedNotificationData defines data to be sent along with an
// EpochSealed notification.
type EpochSealedNotificationData struct {
	Epoch *Epoch
}

// Notification defines notification that is sent to the caller via the
// callback function provided during the call to New and consists of a
// notification type as well as associated data that depends on the type as
// follows:
//
//	NTBlockAdded:   *BlockAddedNotificationData
//	NTChainChanged: *ChainChangedNotificationData
//	NTEpochSealed:  *EpochSealedNotificationData
type Notification struct {
	Type NotificationType
	Data interface{}
}

// Subscribe to block DAG notifications. Registers a callback to be executed
// when various events take place. See the documentation on Notification and
// NotificationType for details on the types and contents of notifications.
func (dag *BlockDAG) Subscribe(callback NotificationCallback) {
	dag.notificationsLock.Lock()
	defer dag.notificationsLock.Unlock()
	dag.notifications = append(dag.notifications, callback)
}

// sendNotification sends a notification with the passed type and data if the
// caller requested notifications by providing a callback function in the call
// to New.
func (dag *BlockDAG) sendNotification(typ NotificationType, data interface{}) {
	// Generate and send the notification.
	n := Notification{Type: typ, Data: data}
	dag.notificationsLock.RLock()
	defer dag.notificationsLock.RUnlock()
	for _, callback := range dag.notifications {
		callback(&n)
	}
}

// notifyBlockAccepted emits the notifications produced by one accepted block:
// the block itself, the chain change if the pivot moved, and one sealed-epoch
// notification per epoch the change anchored.
//
// Notifications are sent with the DAG lock released so callbacks may query
// the DAG; the lock is reacquired before returning to the caller's deferred
// unlock.
func (dag *BlockDAG) notifyBlockAccepted(node *blockNode, chainUpdates *ChainUpdates, epochsAdded int) {
	sealed := make([]*Epoch, epochsAdded)
	copy(sealed, dag.epochs[len(dag.epochs)-epochsAdded:])

	dag.dagLock.Unlock()
	defer dag.dagLock.Lock()

	dag.sendNotification(NTBlockAdded, &BlockAddedNotificationData{
		Hash:   &node.hash,
		Height: node.height,
	})
	if len(chainUpdates.RemovedChainBlockHashes) > 0 || len(chainUpdates.AddedChainBlockHashes) > 0 {
		dag.sendNotification(NTChainChanged, &ChainChangedNotificationData{
			RemovedChainBlockHashes: chainUpdates.RemovedChainBlockHashes,
			AddedChainBlockHashes:   chainUpdates.AddedChainBlockHashes,
		})
	}
	for _, epoch := range sealed {
		dag.sendNotification(NTEpochSealed, &EpochSealedNotificationData{Epoch: epoch})
	}
}
