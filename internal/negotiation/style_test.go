package negotiation

import "testing"

func buyerHistory(texts ...string) []Message {
	var history []Message
	for i, text := range texts {
		history = append(history, Message{Sender: SenderBuyer, Text: text})
		history = append(history, Message{Sender: SenderSeller, Text: "noted " + string(rune('a'+i))})
	}
	return history
}

func TestProfileStyle(t *testing.T) {
	tests := []struct {
		name    string
		history []Message
		want    Style
	}{
		{
			name:    "empty history",
			history: nil,
			want:    StyleStandard,
		},
		{
			name:    "plain haggling",
			history: buyerHistory("how much?", "can you do 15000?"),
			want:    StyleStandard,
		},
		{
			name:    "ultimatum in latest message",
			history: buyerHistory("how much?", "what's your best price, take it or leave it"),
			want:    StyleAggressive,
		},
		{
			name:    "polite buyer",
			history: buyerHistory("hello, could you please share the price?"),
			want:    StylePolite,
		},
		{
			name: "inquisitive buyer past three messages",
			history: buyerHistory(
				"what about the service history?",
				"tell me about the condition",
				"why is it priced so high?",
				"ok give me a number",
			),
			want: StylePatient,
		},
		{
			name: "aggressive beats patient when both match",
			history: buyerHistory(
				"what about the condition?",
				"tell me more",
				"explain the mileage",
				"final offer, take it or leave it",
			),
			want: StyleAggressive,
		},
		{
			name: "old ultimatum outside the two-message window",
			history: buyerHistory(
				"give me your best price",
				"ok thanks, please hold it for me",
				"I appreciate the help",
			),
			want: StylePolite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProfileStyle(tt.history)
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
