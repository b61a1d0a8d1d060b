package cards

import "go-tarot-gen/internal/models"

// majorArcana is the built-in major arcana in deck order.
var majorArcana = []models.Card{
	{
		Name: "The Fool", Numeral: "00", Arcana: models.ArcanaMajor,
		Description: "A young traveler at cliff's edge with a small dog, about to step into the unknown",
		KeySymbols:  []string{"cliff", "knapsack", "white rose", "small dog"},
	},
	{
		Name: "The Magician", Numeral: "01", Arcana: models.ArcanaMajor,
		Description: "A figure at a table with arms raised, one pointing up and one down, tools of magic before them",
		KeySymbols:  []string{"infinity symbol", "wand", "cup", "sword", "pentacle", "table"},
	},
	{
		Name: "The High Priestess", Numeral: "02", Arcana: models.ArcanaMajor,
		Description: "A serene woman seated between two pillars, a crescent moon at her feet, holding a scroll",
		KeySymbols:  []string{"two pillars", "crescent moon", "scroll", "veil", "pomegranates"},
	},
	{
		Name: "The Empress", Numeral: "03", Arcana: models.ArcanaMajor,
		Description: "A regal woman on a throne amid lush nature, crowned with stars, holding a scepter",
		KeySymbols:  []string{"crown of stars", "wheat field", "scepter", "cushioned throne", "flowing water"},
	},
	{
		Name: "The Emperor", Numeral: "04", Arcana: models.ArcanaMajor,
		Description: "An authoritative figure on a stone throne with ram heads, holding an ankh scepter",
		KeySymbols:  []string{"stone throne", "ram heads", "ankh scepter", "armor", "mountains"},
	},
	{
		Name: "The Hierophant", Numeral: "05", Arcana: models.ArcanaMajor,
		Description: "A robed religious figure seated between pillars, blessing two acolytes, holding a triple cross",
		KeySymbols:  []string{"triple cross", "two acolytes", "pillars", "raised hand", "crown"},
	},
	{
		Name: "The Lovers", Numeral: "06", Arcana: models.ArcanaMajor,
		Description: "Two figures beneath an angel in the sky, a tree of knowledge and tree of life behind them",
		KeySymbols:  []string{"angel", "two figures", "tree of knowledge", "tree of life", "sun"},
	},
	{
		Name: "The Chariot", Numeral: "07", Arcana: models.ArcanaMajor,
		Description: "A warrior in a chariot pulled by two sphinxes, one black and one white, under a starry canopy",
		KeySymbols:  []string{"chariot", "two sphinxes", "starry canopy", "armor", "city behind"},
	},
	{
		Name: "Strength", Numeral: "08", Arcana: models.ArcanaMajor,
		Description: "A gentle figure calmly closing a lion's mouth, infinity symbol above their head",
		KeySymbols:  []string{"lion", "infinity symbol", "garland of flowers", "white robe"},
	},
	{
		Name: "The Hermit", Numeral: "09", Arcana: models.ArcanaMajor,
		Description: "A cloaked elder atop a mountain holding a lantern with a six-pointed star inside",
		KeySymbols:  []string{"lantern", "six-pointed star", "staff", "mountain peak", "cloak"},
	},
	{
		Name: "Wheel of Fortune", Numeral: "10", Arcana: models.ArcanaMajor,
		Description: "A great wheel with mystical symbols, figures rising and falling, sphinx atop",
		KeySymbols:  []string{"wheel", "sphinx", "serpent", "anubis", "mystical symbols", "clouds"},
	},
	{
		Name: "Justice", Numeral: "11", Arcana: models.ArcanaMajor,
		Description: "A seated figure holding a sword upright in one hand and balanced scales in the other",
		KeySymbols:  []string{"sword", "scales", "throne", "crown", "purple veil"},
	},
	{
		Name: "The Hanged Man", Numeral: "12", Arcana: models.ArcanaMajor,
		Description: "A figure suspended upside-down from a living tree by one foot, serene expression, halo of light",
		KeySymbols:  []string{"living tree", "suspended figure", "halo", "crossed leg"},
	},
	{
		Name: "Death", Numeral: "13", Arcana: models.ArcanaMajor,
		Description: "A skeleton in armor riding a white horse, carrying a black flag with a white rose",
		KeySymbols:  []string{"skeleton", "white horse", "black flag", "white rose", "rising sun"},
	},
	{
		Name: "Temperance", Numeral: "14", Arcana: models.ArcanaMajor,
		Description: "A winged angel pouring water between two cups, one foot on land and one in water",
		KeySymbols:  []string{"angel wings", "two cups", "flowing water", "path to mountains", "triangle"},
	},
	{
		Name: "The Devil", Numeral: "15", Arcana: models.ArcanaMajor,
		Description: "A horned figure on a pedestal with two chained figures below, inverted pentagram above",
		KeySymbols:  []string{"horned figure", "chains", "two figures", "inverted pentagram", "pedestal"},
	},
	{
		Name: "The Tower", Numeral: "16", Arcana: models.ArcanaMajor,
		Description: "A tall tower struck by lightning, crown blown off the top, figures falling from windows",
		KeySymbols:  []string{"tower", "lightning bolt", "falling figures", "crown", "flames"},
	},
	{
		Name: "The Star", Numeral: "17", Arcana: models.ArcanaMajor,
		Description: "A nude figure kneeling by a pool pouring water onto land and into the pool, stars above",
		KeySymbols:  []string{"large star", "seven smaller stars", "two vessels", "pool", "bird in tree"},
	},
	{
		Name: "The Moon", Numeral: "18", Arcana: models.ArcanaMajor,
		Description: "A moon with a face between two towers, a dog and wolf howling, a crayfish emerging from water",
		KeySymbols:  []string{"moon face", "two towers", "dog", "wolf", "crayfish", "winding path"},
	},
	{
		Name: "The Sun", Numeral: "19", Arcana: models.ArcanaMajor,
		Description: "A joyful child on a white horse beneath a radiant sun, sunflowers behind a wall",
		KeySymbols:  []string{"radiant sun", "child", "white horse", "sunflowers", "red banner"},
	},
	{
		Name: "Judgement", Numeral: "20", Arcana: models.ArcanaMajor,
		Description: "An angel blowing a trumpet from the clouds, figures rising from coffins below",
		KeySymbols:  []string{"angel", "trumpet", "rising figures", "coffins", "mountains", "clouds"},
	},
	{
		Name: "The World", Numeral: "21", Arcana: models.ArcanaMajor,
		Description: "A dancing figure inside a laurel wreath, four creatures in each corner",
		KeySymbols:  []string{"laurel wreath", "dancing figure", "angel", "eagle", "bull", "lion"},
	},
}

// scene is the imagery for one minor arcana card.
type scene struct {
	description string
	symbols     []string
}

// suitScenes holds a suit's pips (index 0 is the Ace) and its court in rank order.
type suitScenes struct {
	suit  string
	start int
	pips  [10]scene
	court [4]scene
}

var minorSuits = []suitScenes{
	{
		suit:  "Wands",
		start: 22,
		pips: [10]scene{
			{"A hand emerging from a cloud holding a single budding wand", []string{"hand", "cloud", "budding wand", "leaves"}},
			{"A figure holding a globe looks out from a castle battlement, two wands mounted on the wall", []string{"globe", "castle", "two wands", "sea"}},
			{"A figure on a cliff gazing at ships on the sea, three wands planted behind them", []string{"cliff", "ships", "three wands", "horizon"}},
			{"A celebration scene with four wands forming a canopy decorated with garlands", []string{"four wands", "garland", "castle", "celebrating figures"}},
			{"Five figures wielding wands in chaotic conflict on rough terrain", []string{"five wands", "five figures", "struggle", "rough ground"}},
			{"A rider on horseback wearing a laurel wreath, attendants carrying six wands", []string{"horseback rider", "laurel wreath", "six wands", "attendants"}},
			{"A figure on a hill defending their position against six wands rising from below", []string{"hilltop", "defending figure", "seven wands", "uneven ground"}},
			{"Eight wands flying through the air over an open landscape at speed", []string{"eight wands", "open sky", "landscape", "river"}},
			{"A wounded but vigilant figure leaning on a wand, eight wands arrayed behind them", []string{"bandaged figure", "nine wands", "defensive stance"}},
			{"A figure struggling under the weight of ten wands, walking toward a distant town", []string{"ten wands", "burdened figure", "distant town", "path"}},
		},
		court: [4]scene{
			{"A youthful figure in a desert landscape holding a wand and gazing at it with wonder", []string{"wand", "desert", "tunic", "salamanders"}},
			{"An armored rider on a rearing horse charging forward, brandishing a wand", []string{"rearing horse", "wand", "armor", "pyramids"}},
			{"A queen on a throne holding a wand and sunflower, a black cat at her feet", []string{"throne", "wand", "sunflower", "black cat", "lions"}},
			{"A king on a throne adorned with salamanders, holding a flowering wand", []string{"throne", "salamanders", "flowering wand", "crown", "cape"}},
		},
	},
	{
		suit:  "Cups",
		start: 36,
		pips: [10]scene{
			{"A hand from a cloud holds an overflowing chalice, a dove descends toward it", []string{"hand", "cloud", "overflowing cup", "dove", "lotus"}},
			{"Two figures exchange cups beneath a winged lion head, a caduceus between them", []string{"two figures", "two cups", "caduceus", "winged lion"}},
			{"Three maidens raise their cups in celebration in a garden of flowers and fruit", []string{"three maidens", "three cups", "garden", "fruit"}},
			{"A figure sits under a tree looking discontent, three cups on the ground, a hand offers a fourth", []string{"tree", "seated figure", "four cups", "hand from cloud"}},
			{"A cloaked figure in grief before three spilled cups, two cups still standing behind", []string{"cloaked figure", "three spilled cups", "two standing cups", "bridge", "river"}},
			{"Children in a garden with six cups filled with flowers, a nostalgic village scene", []string{"children", "six cups", "flowers", "village", "garden"}},
			{"A silhouetted figure gazes at seven cups in the clouds, each holding a different vision", []string{"silhouette", "seven cups", "clouds", "visions", "castle", "jewels", "snake"}},
			{"A figure walks away from eight stacked cups toward mountains under a moon", []string{"departing figure", "eight cups", "mountains", "moon", "river"}},
			{"A content figure sits with arms crossed before nine golden cups arranged on a curved table", []string{"seated figure", "nine cups", "curved table", "satisfaction"}},
			{"A joyful family beneath a rainbow of ten cups, a cottage and garden in background", []string{"family", "ten cups", "rainbow", "cottage", "garden"}},
		},
		court: [4]scene{
			{"A young figure in flowing robes gazes at a cup with a fish emerging from it", []string{"cup", "fish", "flowing robes", "sea"}},
			{"A knight on a calm horse holds a cup forward, a river flowing beneath them", []string{"horse", "cup", "river", "wings on helmet"}},
			{"A queen on an ornate throne at the water's edge, holding a elaborate chalice", []string{"ornate throne", "chalice", "water", "cherubs", "pebbles"}},
			{"A king on a throne amid turbulent seas, holding a cup and scepter", []string{"throne", "cup", "scepter", "turbulent sea", "ship"}},
		},
	},
	{
		suit:  "Swords",
		start: 50,
		pips: [10]scene{
			{"A hand from a cloud grips a gleaming sword, a crown and wreath at its tip", []string{"hand", "cloud", "sword", "crown", "wreath", "mountains"}},
			{"A blindfolded figure sits balancing two crossed swords, a crescent moon over calm water", []string{"blindfold", "two swords", "crescent moon", "calm water"}},
			{"A heart pierced by three swords under dark storm clouds, rain falling", []string{"heart", "three swords", "storm clouds", "rain"}},
			{"A figure lies in repose on a tomb, three swords on the wall and one beneath them", []string{"tomb", "resting figure", "four swords", "stained glass window"}},
			{"A smirking figure picks up three swords while two defeated figures walk away, stormy sky", []string{"victor", "five swords", "defeated figures", "stormy sky", "water"}},
			{"A ferryman guides a boat with a woman and child across water, six swords in the bow", []string{"boat", "ferryman", "woman and child", "six swords", "calm water"}},
			{"A figure sneaks away from a camp carrying five swords, two swords left planted", []string{"sneaking figure", "seven swords", "camp", "tents"}},
			{"A bound and blindfolded figure surrounded by eight swords stuck in muddy ground", []string{"bound figure", "blindfold", "eight swords", "muddy ground", "castle"}},
			{"A figure sits up in bed, head in hands in anguish, nine swords on the dark wall behind", []string{"bed", "anguished figure", "nine swords", "dark wall", "quilt"}},
			{"A figure lies face down with ten swords in their back, a dark sky with a hint of dawn", []string{"fallen figure", "ten swords", "dark sky", "dawn on horizon"}},
		},
		court: [4]scene{
			{"A youthful figure strides over rough ground holding a sword aloft, windswept clouds", []string{"sword", "windswept clouds", "rough ground", "birds"}},
			{"A knight charges on a galloping horse brandishing a sword, butterflies in the wind", []string{"galloping horse", "sword", "wind", "butterflies", "storm clouds"}},
			{"A queen on a stone throne holds a sword upright, her free hand raised, cloudy sky", []string{"stone throne", "sword", "raised hand", "clouds", "bird"}},
			{"A stern king on a throne holds a sword, trees bend in a strong wind behind him", []string{"throne", "sword", "wind-bent trees", "butterflies", "storm clouds"}},
		},
	},
	{
		suit:  "Pentacles",
		start: 64,
		pips: [10]scene{
			{"A hand from a cloud holds a golden pentacle over a lush garden with an archway", []string{"hand", "cloud", "golden pentacle", "garden", "archway", "lilies"}},
			{"A juggler dances holding two pentacles in a figure eight, ships on a wavy sea behind", []string{"juggler", "two pentacles", "infinity loop", "ships", "waves"}},
			{"A stonemason works on a cathedral arch, three pentacles in the design, monks observe", []string{"stonemason", "three pentacles", "cathedral", "monks", "tools"}},
			{"A figure clutches a pentacle to their chest atop a pile, two under feet, one on crown", []string{"figure", "four pentacles", "city background", "miserly pose"}},
			{"Two destitute figures trudge through snow past a lit church window with five pentacles", []string{"two figures", "snow", "five pentacles", "stained glass window", "tattered clothes"}},
			{"A wealthy merchant weighs pentacles on a scale, giving to kneeling figures", []string{"merchant", "six pentacles", "scale", "kneeling figures", "generosity"}},
			{"A farmer leans on a hoe gazing at a bush bearing seven pentacles, patient waiting", []string{"farmer", "hoe", "seven pentacles", "bush", "patience"}},
			{"A craftsman carefully carves pentacles at a workbench, a town in the background", []string{"craftsman", "workbench", "eight pentacles", "tools", "town"}},
			{"A well-dressed figure in a luxurious garden with a falcon, surrounded by nine pentacles", []string{"garden", "falcon", "nine pentacles", "grapevines", "manor"}},
			{"A multigenerational family under an archway with ten pentacles, dogs at their feet", []string{"family", "ten pentacles", "archway", "dogs", "estate"}},
		},
		court: [4]scene{
			{"A studious youth holds up a pentacle, standing in a green field with young trees", []string{"pentacle", "green field", "young trees", "studious pose"}},
			{"A knight on a sturdy, still horse holds a pentacle, a plowed field stretches behind", []string{"sturdy horse", "pentacle", "plowed field", "patient stance"}},
			{"A queen sits on a throne in a flowering garden, cradling a pentacle, a rabbit nearby", []string{"throne", "pentacle", "flowering garden", "rabbit"}},
			{"A prosperous king on a throne decorated with bull carvings, pentacle on lap, castle grounds", []string{"throne", "bull carvings", "pentacle", "castle", "grapevines"}},
		},
	},
}
