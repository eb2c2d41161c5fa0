package moderation

// Sample is one labeled training line for the spam model.
type Sample struct {
	Text string
	Spam bool
}

// Bootstrapped training corpus shared across languages. Deliberately tiny:
// enough signal to gate obvious promotional spam without a model artifact on
// disk. Languages without their own corpus fall back to this one.
var defaultCorpus = []Sample{
	{"Free entry in 2 a wkly comp to win FA Cup final tkts. Text FA to 87121 now", true},
	{"URGENT! We are trying to contact you. Today draw shows that you have won a prize", true},
	{"Congrats! 1 year special cinema ticket for 2 is yours. Claim call 09061209465 now", true},
	{"Your free ringtone is waiting. Free polys! Call 08702344776 now", true},
	{"Winner! You have been selected for a cash reward. Claim your free prize now urgent", true},
	{"Claim your free airtime bonus now, offer ends today, reply WIN", true},
	{"Congratulations you won a lottery jackpot, send your details to claim the money", true},
	{"The potholes on our main road have not been repaired for months", false},
	{"Our school has no teachers for the science classes this term", false},
	{"When will the water supply in our village be restored", false},
	{"The health center has run out of malaria medicine again", false},
	{"Please help us get electricity connected to the trading center", false},
	{"The bridge on the district road collapsed during the rains", false},
	{"Ok i will come to the meeting soon", false},
	{"Thank you for visiting our community last week", false},
}
