// Package corpus holds the public-domain literary excerpts used to benchmark
// engines on an identical, reproducible chunk set.
package corpus

import "strings"

// Separator joins excerpts into one continuous text block.
const Separator = "\n\n***\n\n"

// Excerpt is a short passage with its source.
type Excerpt struct {
	Source string
	Text   string
}

var excerpts = []Excerpt{
	{
		Source: "Pride and Prejudice, Jane Austen",
		Text: `It is a truth universally acknowledged, that a single man in possession of a good fortune, must be in want of a wife.
		However little known the feelings or views of such a man may be on his first entering a neighbourhood, this truth is so well fixed in the minds of the surrounding families, that he is considered the rightful property of some one or other of their daughters.`,
	},
	{
		Source: "A Scandal in Bohemia, Arthur Conan Doyle",
		Text: `"You see, but you do not observe. The distinction is clear. For example, you have frequently seen the steps which lead up from the hall to this room."
		"Frequently."
		"How often?"
		"Well, some hundreds of times."
		"Then how many are there?"
		"How many? I don't know."
		"Quite so! You have not observed. And yet you have seen. That is just my point. Now, I know that there are seventeen steps, because I have both seen and observed."`,
	},
	{
		Source: "The Great Gatsby, F. Scott Fitzgerald",
		Text:   `And as I sat there brooding on the old, unknown world, I thought of Gatsby's wonder when he first picked out the green light at the end of Daisy's dock. He had come a long way to this blue lawn, and his dream must have seemed so close that he could hardly fail to grasp it. He did not know that it was already behind him, somewhere back in that vast obscurity beyond the city, where the dark fields of the republic rolled on under the night.`,
	},
	{
		Source: "Moby-Dick, Herman Melville",
		Text:   `Call me Ishmael. Some years ago, never mind how long precisely, having little or no money in my purse, and nothing particular to interest me on shore, I thought I would sail about a little and see the watery part of the world. It is a way I have of driving off the spleen and regulating the circulation.`,
	},
	{
		Source: "A Tale of Two Cities, Charles Dickens",
		Text:   `It was the best of times, it was the worst of times, it was the age of wisdom, it was the age of foolishness, it was the epoch of belief, it was the epoch of incredulity, it was the season of Light, it was the season of Darkness, it was the spring of hope, it was the winter of despair.`,
	},
	{
		Source: "Frankenstein, Mary Shelley",
		Text: `I saw the dull yellow eye of the creature open; it breathed hard, and a convulsive motion agitated its limbs.
		How can I describe my emotions at this catastrophe, or how delineate the wretch whom with such infinite pains and care I had endeavoured to form? His limbs were in proportion, and I had selected his features as beautiful. Beautiful! Great God! His yellow skin scarcely covered the work of muscles and arteries beneath...`,
	},
	{
		Source: "Alice's Adventures in Wonderland, Lewis Carroll",
		Text: `"But I don’t want to go among mad people," Alice remarked.
		"Oh, you can’t help that," said the Cat: "we’re all mad here. I’m mad. You’re mad."
		"How do you know I’m mad?" said Alice.
		"You must be," said the Cat, "or you wouldn’t have come here."`,
	},
	{
		Source: "The Iliad, Homer (Samuel Butler translation)",
		Text:   `Sing, O goddess, the anger of Achilles son of Peleus, that brought countless ills upon the Achaeans. Many a brave soul did it send hurrying down to Hades, and many a hero did it yield a prey to dogs and vultures, for so were the counsels of Jove fulfilled from the day on which the son of Atreus, king of men, and great Achilles, first fell out with one another.`,
	},
	{
		Source: "Crime and Punishment, Fyodor Dostoevsky (Constance Garnett translation)",
		Text:   `He was so immersed in himself and had isolated himself so much from everyone that he was afraid not only of meeting his landlady but of meeting anyone at all. He was crushed by poverty; but even his strained circumstances had lately ceased to burden him.`,
	},
	{
		Source: "Dracula, Bram Stoker",
		Text:   `I was not able to light on any map or work giving the exact locality of the Castle Dracula, as there are no maps of this country as yet to compare with our own Ordnance Survey maps; but I found that Bistritz, the post town named by Count Dracula, is a fairly well-known place.`,
	},
	{
		Source: "Jane Eyre, Charlotte Brontë",
		Text:   `There was no possibility of taking a walk that day. We had been wandering, indeed, in the leafless shrubbery an hour in the morning; but since dinner (Mrs. Reed, when there was no company, dined early) the cold winter wind had brought with it clouds so sombre, and a rain so penetrating, that further out-door exercise was now out of the question.`,
	},
	{
		Source: "The Time Machine, H. G. Wells",
		Text:   `The Time Traveller (for so it will be convenient to speak of him) was expounding a recondite matter to us. His grey eyes shone and twinkled, and his usually pale face was flushed and animated. The fire burned brightly, and the soft radiance of the incandescent lights in the lilies of silver caught the bubbles that flashed and passed in our glasses.`,
	},
	{
		Source: "Metamorphosis, Franz Kafka (David Wyllie translation)",
		Text:   `One morning, when Gregor Samsa woke from troubled dreams, he found himself transformed in his bed into a horrible vermin. He lay on his armour-like back, and if he lifted his head a little he could see his brown belly, slightly domed and divided by arches into stiff sections.`,
	},
	{
		Source: "Heart of Darkness, Joseph Conrad",
		Text:   `The Nellie, a cruising yawl, swung to her anchor without a flutter of the sails, and was at rest. The flood had made, the wind was nearly calm, and being bound down the river, the only thing for it was to come to and wait for the turn of the tide.`,
	},
	{
		Source: "Treasure Island, Robert Louis Stevenson",
		Text:   `Squire Trelawney, Dr. Livesey, and the rest of these gentlemen having asked me to write down the whole particulars about Treasure Island, from the beginning to the end, keeping nothing back but the bearings of the island, and that only because there is still treasure not yet lifted, I take up my pen in the year of grace 17 and go back to the time when my father kept the Admiral Benbow inn.`,
	},
}

// Excerpts returns a copy of the excerpt list.
func Excerpts() []Excerpt {
	return append([]Excerpt(nil), excerpts...)
}

// Text returns every excerpt joined by Separator.
func Text() string {
	parts := make([]string, len(excerpts))
	for i, e := range excerpts {
		parts[i] = e.Text
	}
	return strings.Join(parts, Separator)
}
