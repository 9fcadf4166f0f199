package conf

import "github.com/spf13/viper"

// setDefaults registers the default value of every setting. The values
// mirror a global monitoring deployment: the 20 minute delay is what it
// takes for teleseismic P picks to accumulate.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("workingdir", "~/scdlpicker")
	v.SetDefault("device", "cpu")
	v.SetDefault("author", "dl-reloc")
	v.SetDefault("agencyid", "GFZ")
	v.SetDefault("dryrun", false)

	v.SetDefault("relocation.pickauthors", []string{"dlpicker"})
	v.SetDefault("relocation.mindelay", 1200.0) // seconds
	v.SetDefault("relocation.maxresidual", 2.5)
	v.SetDefault("relocation.maxrms", 1.7)
	v.SetDefault("relocation.maxdelta", 105.0)
	v.SetDefault("relocation.mindepth", 10.0)
	v.SetDefault("relocation.defaultdepth", 10.0)
	v.SetDefault("relocation.events", []string{})
	v.SetDefault("relocation.solvercommand", []string{"scdlpicker-reloc"})
	v.SetDefault("relocation.depthcommand", []string{})

	v.SetDefault("repicker.model", "phasenet")
	v.SetDefault("repicker.dataset", "geofon")
	v.SetDefault("repicker.batchsize", 50)
	v.SetDefault("repicker.minconfidence", 0.3)
	v.SetDefault("repicker.preferrecent", true)
	v.SetDefault("repicker.exit", false)
	v.SetDefault("repicker.runnercommand", []string{"scdlpicker-annotate"})

	v.SetDefault("database.sqlite.enabled", true)
	v.SetDefault("database.sqlite.path", "catalog.db")

	v.SetDefault("log.enabled", true)
	v.SetDefault("log.path", "logs")
	v.SetDefault("log.maxsizemb", 100)
	v.SetDefault("log.maxbackups", 3)
	v.SetDefault("log.maxagedays", 28)
}
