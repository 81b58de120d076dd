package negotiation

const intentPrompt = `You are analyzing a car sales negotiation. Look at the customer's message and determine their intent.

Recent conversation:
%s

Customer's latest message: "%s"

Respond with ONLY this exact JSON format:
{
  "intent": "price_inquiry|price_reduction|agreement|rejection|general",
  "is_ready_to_finalize": true/false,
  "wants_final_price": true/false,
  "should_move_to_final": true/false,
  "proposed_final_price": number_or_null
}

IMPORTANT FINALIZATION DETECTION:
Set "is_ready_to_finalize": true AND extract "proposed_final_price" if the customer says things like:
- "okay lets finalize with [amount]"
- "lets finalize at [amount]"
- "final price [amount]"
- "make a deal at [amount]"
- "agreed on [amount]"
- "deal for [amount]"
- "okay [amount]" (after negotiation)

Other guidelines:
- "wants_final_price": true if asking for the best/final/lowest price (not proposing one)
- "should_move_to_final": true if the conversation should move to the final price now
- "proposed_final_price": extract ONLY the number if the customer proposes a specific final amount
- "intent": set to "agreement" if they are ready to finalize

Look carefully for price amounts in the message (like 105000, 105k, etc.) when finalization words are used.
Return ONLY the JSON object, no markdown fences or other text.`

const contactPrompt = `Extract contact information from this message. Return ONLY valid JSON:

Message: "%s"

Return this exact format (use null for missing info):
{
  "name": "extracted name or null",
  "email": "extracted email or null",
  "phone": "extracted phone number or null",
  "has_contact_info": true/false
}

Only set has_contact_info to true if you find at least a name AND (phone OR email).
Return ONLY the JSON object, no markdown fences or other text.`

const replyPrompt = `You are Kamal, a friendly car seller in Sri Lanka. Keep responses SHORT and natural.

Your car: %s
Your asking price: %s
Your final minimum: %s
Your current offer: %s
Customer said: "%s"

Rules:
1. Keep responses 1-2 sentences maximum
2. If this is your final offer (%s), say: "My final price is %s. Are you interested?"
3. If the customer agrees to ANY price, say: "Great! Let's make a deal at %s. I need your name and phone number to finalize."
4. Be natural and friendly, not robotic
5. Don't repeat yourself

Current status: %s

Respond as Kamal - keep it short and conversational.`

const replyStatusFinal = "This IS your final offer - cannot go lower"
const replyStatusOpen = "You can still negotiate"
