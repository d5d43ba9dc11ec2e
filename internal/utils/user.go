package utils

import (
	"math/rand"
	"strings"
)

var avatarEmojis = []string{"🌱", "🌿", "🍃", "🎯", "🚀", "💡", "📚", "🧭", "🛠️", "🦉", "🦊", "🐼"}

// GetRandomEmoji returns a random emoji used as the default avatar
func GetRandomEmoji() string {
	return avatarEmojis[rand.Intn(len(avatarEmojis))]
}

// UsernameFromEmail derives a display name from the local part of an email.
func UsernameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "member"
	}
	if len(local) > 64 {
		local = local[:64]
	}
	return local
}
