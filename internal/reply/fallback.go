package reply

import "strings"

// DefaultFallback answers any utterance the canned table does not know.
const DefaultFallback = "I'm not sure how to respond to that. Could you ask something else?"

var canned = map[string]string{
	"What's the weather like today?":           "I don't have access to real-time weather data, but I'd recommend checking a weather app or website for the most accurate forecast for your location.",
	"Tell me about the latest technology news": "I don't have access to the latest news, but major tech developments recently have included advances in AI, quantum computing, and sustainable energy technologies.",
	"How does artificial intelligence work?":   "AI works by using algorithms to analyze data, learn from it, and make decisions or predictions. Modern AI often uses neural networks to simulate human-like learning processes.",
	"What are the best restaurants nearby?":    "I don't have access to your location or real-time restaurant data. I'd recommend using a service like Google Maps, Yelp, or TripAdvisor to find highly-rated restaurants in your area.",
	"Can you explain quantum computing?":       "Quantum computing uses quantum bits or 'qubits' that can exist in multiple states simultaneously, unlike classical bits. This allows quantum computers to solve certain complex problems much faster than traditional computers.",
	"What's your favorite movie?":              "As an AI, I don't watch movies or have personal preferences. But I'd be happy to discuss popular films or recommend something based on genres you enjoy!",
}

// Fallback returns the canned reply for an exact utterance match, else DefaultFallback.
func Fallback(utterance string) string {
	if text, ok := canned[strings.TrimSpace(utterance)]; ok {
		return text
	}
	return DefaultFallback
}
