package state

import (
	"strconv"
	"time"
)

// ExpiryFormat is the on-disk layout for premium expiry dates.
const ExpiryFormat = "2006-01-02"

// ChatKey renders a chat id the way the persisted structures key it.
func ChatKey(chatID int64) string { return strconv.FormatInt(chatID, 10) }

// IsPremium reports whether the chat holds an unexpired entitlement.
// A missing entry or a malformed expiry date is not premium (fail closed).
// The store is re-read on every call so admin grants apply immediately.
func IsPremium(st Store, chatID int64, today time.Time) bool {
	users, err := st.PremiumUsers()
	if err != nil {
		return false
	}
	raw, ok := users[ChatKey(chatID)]
	if !ok {
		return false
	}
	exp, err := time.Parse(ExpiryFormat, raw)
	if err != nil {
		return false
	}
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !exp.Before(day)
}

// GrantPremium stores an entitlement expiring on the given date and returns
// the persisted expiry string.
func GrantPremium(st Store, chatID int64, until time.Time) (string, error) {
	users, err := st.PremiumUsers()
	if err != nil {
		return "", err
	}
	exp := until.Format(ExpiryFormat)
	users[ChatKey(chatID)] = exp
	return exp, st.SavePremiumUsers(users)
}

// RevokePremium removes the entitlement. Returns false when none existed.
func RevokePremium(st Store, chatID int64) (bool, error) {
	users, err := st.PremiumUsers()
	if err != nil {
		return false, err
	}
	key := ChatKey(chatID)
	if _, ok := users[key]; !ok {
		return false, nil
	}
	delete(users, key)
	return true, st.SavePremiumUsers(users)
}

// AddSubscriber appends the chat to the subscriber list if absent.
func AddSubscriber(st Store, chatID int64) (bool, error) {
	subs, err := st.Subscribers()
	if err != nil {
		return false, err
	}
	key := ChatKey(chatID)
	for _, s := range subs {
		if s == key {
			return false, nil
		}
	}
	return true, st.SaveSubscribers(append(subs, key))
}

// RemoveSubscriber drops the chat from the subscriber list.
func RemoveSubscriber(st Store, chatID int64) (bool, error) {
	subs, err := st.Subscribers()
	if err != nil {
		return false, err
	}
	key := ChatKey(chatID)
	out := subs[:0]
	removed := false
	for _, s := range subs {
		if s == key {
			removed = true
			continue
		}
		out = append(out, s)
	}
	if !removed {
		return false, nil
	}
	return true, st.SaveSubscribers(out)
}

// IsSubscriber reports list membership.
func IsSubscriber(st Store, chatID int64) bool {
	subs, err := st.Subscribers()
	if err != nil {
		return false
	}
	key := ChatKey(chatID)
	for _, s := range subs {
		if s == key {
			return true
		}
	}
	return false
}
