package handlers

import "github.com/gin-gonic/gin"

// API bundles the resource handlers mounted behind authentication.
type API struct {
	Communities *CommunityHandler
	Roles       *RoleHandler
	Messages    *MessageHandler
	DirectChats *DirectChatHandler
	Friends     *FriendHandler
}

// RegisterRoutes mounts every authenticated route on router.
func RegisterRoutes(router gin.IRouter, auth gin.HandlerFunc, api API) {
	g := router.Group("/", auth)

	g.POST("/communities", api.Communities.Create)
	g.GET("/communities", api.Communities.List)
	g.GET("/communities/:community_id", api.Communities.Get)
	g.PATCH("/communities/:community_id", api.Communities.Update)
	g.DELETE("/communities/:community_id", api.Communities.Delete)
	g.POST("/communities/:community_id/channels", api.Communities.CreateChannel)
	g.PATCH("/communities/:community_id/channels/:channel_id", api.Communities.RenameChannel)
	g.DELETE("/communities/:community_id/channels/:channel_id", api.Communities.DeleteChannel)
	g.POST("/communities/:community_id/invites", api.Communities.CreateInvite)
	g.POST("/invites/:code/accept", api.Communities.AcceptInvite)
	g.GET("/communities/:community_id/members", api.Communities.ListMembers)
	g.DELETE("/communities/:community_id/members/:user_id", api.Communities.Kick)

	g.GET("/communities/:community_id/roles", api.Roles.List)
	g.POST("/communities/:community_id/roles", api.Roles.Create)
	g.PATCH("/communities/:community_id/roles/:role_id", api.Roles.Update)
	g.DELETE("/communities/:community_id/roles/:role_id", api.Roles.Delete)
	g.PUT("/communities/:community_id/members/:user_id/roles/:role_id", api.Roles.Assign)
	g.DELETE("/communities/:community_id/members/:user_id/roles/:role_id", api.Roles.Unassign)
	g.GET("/permissions", api.Roles.Capabilities)

	g.GET("/channels/:channel_id/messages", api.Messages.ChannelHistory)
	g.POST("/channels/:channel_id/messages", api.Messages.PostToChannel)
	g.GET("/direct-chats/:chat_id/messages", api.Messages.DirectChatHistory)
	g.POST("/direct-chats/:chat_id/messages", api.Messages.PostToDirectChat)
	g.PATCH("/messages/:message_id", api.Messages.Edit)
	g.DELETE("/messages/:message_id", api.Messages.Delete)
	g.GET("/messages/:message_id/reactions", api.Messages.Reactions)
	g.POST("/messages/:message_id/reactions", api.Messages.AddReaction)
	g.DELETE("/messages/:message_id/reactions", api.Messages.RemoveReaction)
	g.GET("/reactions/emojis", api.Messages.Emojis)

	g.POST("/direct-chats", api.DirectChats.Start)
	g.POST("/direct-chats/groups", api.DirectChats.CreateGroup)
	g.GET("/direct-chats", api.DirectChats.List)
	g.GET("/direct-chats/:chat_id", api.DirectChats.Get)
	g.POST("/direct-chats/:chat_id/participants", api.DirectChats.AddParticipant)
	g.DELETE("/direct-chats/:chat_id/participants/:user_id", api.DirectChats.RemoveParticipant)

	g.POST("/friends/requests", api.Friends.SendRequest)
	g.POST("/friends/requests/:request_id/respond", api.Friends.Respond)
	g.GET("/friends", api.Friends.ListFriends)
	g.GET("/friends/requests/pending", api.Friends.ListPending)
}
