package assistant

import (
	"context"
	"strings"
)

type rule struct {
	keywords []string
	reply    string
}

var rules = []rule{
	{
		keywords: []string{"need", "create"},
		reply:    "I'd be happy to help you create a need! You can specify what task you need help with, provide details about your requirements, and I'll help you connect with the right service provider. What kind of help do you need?",
	},
	{
		keywords: []string{"provider", "find"},
		reply:    "You can browse available service providers on the Providers page. They're verified and highly rated. Just review their qualifications and accept the ones that match your needs!",
	},
	{
		keywords: []string{"price", "cost", "budget"},
		reply:    "Pricing depends on the type of service and your location. Each provider sets their own rates, which you'll see before confirming. I recommend comparing a few providers to find the best value for your needs.",
	},
	{
		keywords: []string{"help", "how"},
		reply:    "I'm here to help! You can:\n1. Create Needs - Tell me what tasks you need help with\n2. Browse Providers - Find verified service providers\n3. Track Progress - Monitor your needs and their status\n4. Chat with me - Ask any questions about the platform\n\nWhat would you like help with?",
	},
	{
		keywords: []string{"thank"},
		reply:    "You're welcome! Let me know if you need anything else. I'm always here to help!",
	},
}

const defaultReply = "That's interesting! You can use OnePoint ALO to manage your daily tasks and connect with local service providers. Would you like to create a need, explore providers, or learn more about how the platform works?"

// Canned replies by keyword. The first matching rule wins.
type Canned struct{}

var _ Responder = Canned{}

func (Canned) Reply(_ context.Context, history []Message) (string, error) {
	input := strings.ToLower(lastUserMessage(history))
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(input, kw) {
				return r.reply, nil
			}
		}
	}
	return defaultReply, nil
}
