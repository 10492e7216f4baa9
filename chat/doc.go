// Package chat connects chat platforms to the command dispatcher.
//
// A Gateway owns one platform session. For every message that starts with the
// command prefix it builds a dispatch.Invocation (caller, owner resolved from
// the platform context, optional target user), runs it on its own goroutine
// and posts the outcome back to the same conversation.
//
// Two gateways are provided:
//   - TwitchGateway: go-twitch-irc. The owner is the broadcaster (the room id
//     of the channel). Targets are @logins resolved from users seen in chat or,
//     when app credentials are configured, through Helix.
//   - TelegramGateway: telegram-bot-api long polling. The owner is the group
//     creator, or TELEGRAM_OWNER_ID in private chats. Targets come from a
//     replied-to message, a text mention, a numeric id or a seen @username.
//
// Gateways return ErrInvalidToken when the platform rejects the bot token;
// the process treats that as a terminal startup failure.
package chat
