package roomid

var adjectives = []string{
	"brave", "calm", "cosy", "eager", "fancy", "gentle", "happy", "jolly", "kind", "lively",
	"lucky", "merry", "mellow", "nimble", "plucky", "quiet", "rapid", "sunny", "swift", "witty",
	"bold", "bright", "clever", "dapper", "fuzzy", "grand", "humble", "keen", "proud", "zesty",
}

var colors = []string{
	"amber", "azure", "beige", "coral", "cyan", "ebony", "golden", "indigo", "ivory", "jade",
	"khaki", "lilac", "magenta", "maroon", "mint", "ochre", "olive", "peach", "plum", "ruby",
	"rust", "saffron", "sage", "scarlet", "silver", "teal", "topaz", "umber", "violet", "wine",
}

var animals = []string{
	"otter", "panda", "koala", "falcon", "heron", "lynx", "marmot", "narwhal", "ocelot", "puffin",
	"quokka", "raven", "salmon", "tapir", "walrus", "yak", "zebra", "badger", "beaver", "bison",
	"camel", "dingo", "egret", "ferret", "gecko", "hyena", "ibis", "jackal", "lemur", "moose",
}

var places = []string{
	"harbor", "meadow", "canyon", "lagoon", "summit", "valley", "island", "forest", "prairie", "delta",
	"glacier", "reef", "dune", "grove", "marsh", "plateau", "ridge", "bay", "cove", "fjord",
	"oasis", "tundra", "atoll", "bluff", "crater", "gorge", "mesa", "spring", "strait", "brook",
}
