// Package config provides configuration parsing for islands projects.
//
// The configuration is stored in islands.json at the project root. Every
// field is optional; missing fields take the defaults from New.
//
// # Configuration File Structure
//
//	{
//	  "prefix": "data-wp-",
//	  "maxEffectRuns": 100,
//	  "dev": {
//	    "port": 3000,
//	    "host": "localhost",
//	    "pages": "pages",
//	    "serverDirectives": true,
//	    "watch": true
//	  },
//	  "s3": {
//	    "bucket": "my-static-site",
//	    "prefix": "public/",
//	    "region": "us-east-1"
//	  }
//	}
package config
