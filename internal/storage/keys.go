package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"aim-chat/conversation-core/pkg/models"
)

var ErrInvalidRecordID = errors.New("invalid record id")

// Key layout. Documents and indexes never share a prefix.
//
//	conv/{id}                        conversation document
//	idx/conv_member/{user}/{conv}    membership index
//	idx/conv_direct/{len(a)}:{a}|{b} direct pair index, value is conversation id
//	msg/{id}                         message document
//	idx/conv_msg/{conv}/{ts}-{id}    message order index
//	star/{user}/{msg}                starred message document
//	notif/{recipient}/{ts}-{id}      notification document
//	privacy/{user}                   privacy settings document
//	user/{user}                      user profile document
const (
	conversationPrefix  = "conv/"
	memberIndexPrefix   = "idx/conv_member/"
	directIndexPrefix   = "idx/conv_direct/"
	messagePrefix       = "msg/"
	messageIndexPrefix  = "idx/conv_msg/"
	starPrefix          = "star/"
	notificationPrefix  = "notif/"
	privacyPrefix       = "privacy/"
	userPrefix          = "user/"
	timestampKeyPadding = 20
)

func conversationKey(id string) string {
	return conversationPrefix + id
}

func memberIndexKey(userID, conversationID string) string {
	return memberIndexPrefix + userID + "/" + conversationID
}

func memberIndexUserPrefix(userID string) string {
	return memberIndexPrefix + userID + "/"
}

func directIndexKey(a, b string) string {
	return directIndexPrefix + models.DirectPairKey(a, b)
}

func messageKey(id string) string {
	return messagePrefix + id
}

func messageIndexConversationPrefix(conversationID string) string {
	return messageIndexPrefix + conversationID + "/"
}

func messageIndexKey(conversationID string, createdAt time.Time, messageID string) string {
	return messageIndexConversationPrefix(conversationID) + timestampSegment(createdAt) + "-" + messageID
}

func starUserPrefix(userID string) string {
	return starPrefix + userID + "/"
}

func starKey(userID, messageID string) string {
	return starUserPrefix(userID) + messageID
}

func notificationRecipientPrefix(recipientID string) string {
	return notificationPrefix + recipientID + "/"
}

func notificationKey(recipientID string, createdAt time.Time, id string) string {
	return notificationRecipientPrefix(recipientID) + timestampSegment(createdAt) + "-" + id
}

func privacyKey(userID string) string {
	return privacyPrefix + userID
}

func userKey(userID string) string {
	return userPrefix + userID
}

// timestampSegment is zero padded so lexical order matches time order.
func timestampSegment(t time.Time) string {
	return fmt.Sprintf("%0*d", timestampKeyPadding, t.UTC().UnixNano())
}

// lastSegment returns the part of key after the final "/".
func lastSegment(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}

// messageIDFromIndexKey extracts {id} from ".../{ts}-{id}".
func messageIDFromIndexKey(key string) string {
	seg := lastSegment(key)
	if i := strings.IndexByte(seg, '-'); i >= 0 {
		return seg[i+1:]
	}
	return seg
}

func validID(id string) bool {
	return models.ValidUserID(id)
}
